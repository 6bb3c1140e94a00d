package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level representa o nível de severidade de uma mensagem de log
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	FatalLevel: "FATAL",
}

// ParseLevel converte o nome de um nível para o valor correspondente
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

type coreLogger struct {
	mu      sync.Mutex
	level   Level
	console io.Writer
	file    *os.File
}

var core = &coreLogger{
	level:   InfoLevel,
	console: os.Stdout,
}

// Init prepara o logger com o nível mínimo desejado
func Init(level Level) {
	core.mu.Lock()
	defer core.mu.Unlock()
	core.level = level
}

// SetLevel ajusta o nível mínimo em tempo de execução
func SetLevel(level Level) {
	core.mu.Lock()
	defer core.mu.Unlock()
	core.level = level
}

// EnableFileLogging passa a gravar as mensagens também em arquivo
func EnableFileLogging(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("erro ao criar diretório de logs: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", name, time.Now().Format("20060102")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("erro ao abrir arquivo de log: %w", err)
	}

	core.mu.Lock()
	defer core.mu.Unlock()
	if core.file != nil {
		core.file.Close()
	}
	core.file = f
	return nil
}

// Sync descarrega o buffer do arquivo de log, se houver
func Sync() {
	core.mu.Lock()
	defer core.mu.Unlock()
	if core.file != nil {
		core.file.Sync()
	}
}

// Close encerra o arquivo de log
func Close() {
	core.mu.Lock()
	defer core.mu.Unlock()
	if core.file != nil {
		core.file.Close()
		core.file = nil
	}
}

// caller identifica o arquivo/linha que originou a mensagem
func caller() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "???"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func (c *coreLogger) log(level Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if level < c.level {
		return
	}

	line := fmt.Sprintf("%s [%s] %s - %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		levelNames[level],
		caller(),
		msg)

	out := c.console
	if c.file != nil {
		out = io.MultiWriter(c.console, c.file)
	}
	fmt.Fprint(out, line)

	if level == FatalLevel {
		if c.file != nil {
			c.file.Sync()
			c.file.Close()
		}
		os.Exit(1)
	}
}

// Debug registra uma mensagem de depuração
func Debug(args ...interface{}) { core.log(DebugLevel, fmt.Sprint(args...)) }

// Debugf registra uma mensagem de depuração formatada
func Debugf(format string, args ...interface{}) { core.log(DebugLevel, fmt.Sprintf(format, args...)) }

// Info registra uma mensagem informativa
func Info(args ...interface{}) { core.log(InfoLevel, fmt.Sprint(args...)) }

// Infof registra uma mensagem informativa formatada
func Infof(format string, args ...interface{}) { core.log(InfoLevel, fmt.Sprintf(format, args...)) }

// Warn registra um aviso
func Warn(args ...interface{}) { core.log(WarnLevel, fmt.Sprint(args...)) }

// Warnf registra um aviso formatado
func Warnf(format string, args ...interface{}) { core.log(WarnLevel, fmt.Sprintf(format, args...)) }

// Error registra um erro
func Error(args ...interface{}) { core.log(ErrorLevel, fmt.Sprint(args...)) }

// Errorf registra um erro formatado
func Errorf(format string, args ...interface{}) { core.log(ErrorLevel, fmt.Sprintf(format, args...)) }

// Fatal registra um erro fatal e encerra o processo
func Fatal(args ...interface{}) { core.log(FatalLevel, fmt.Sprint(args...)) }

// Fatalf registra um erro fatal formatado e encerra o processo
func Fatalf(format string, args ...interface{}) { core.log(FatalLevel, fmt.Sprintf(format, args...)) }
