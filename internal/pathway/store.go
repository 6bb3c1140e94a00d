package pathway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"teleop_go/internal/models"
)

// Store grava e recupera trajetórias em disco, uma por arquivo JSON,
// indexadas pelo nome. O layout do documento é contrato externo fixo.
type Store struct {
	dir string
}

// DefaultDir devolve o diretório de trajetórias do usuário corrente
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("erro ao resolver diretório de configuração: %w", err)
	}
	return filepath.Join(base, "teleop", "pathways"), nil
}

// NewStore cria o store, garantindo a existência do diretório
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("erro ao criar diretório de trajetórias: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir devolve o diretório gerenciado pelo store
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("nome de trajetória vazio")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("nome de trajetória inválido: %q", name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Save persiste a trajetória sob o próprio nome
func (s *Store) Save(p *models.Pathway) error {
	path, err := s.path(p.Name)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("trajetória inconsistente: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("erro ao serializar trajetória: %w", err)
	}

	// Escrita em arquivo temporário seguida de rename para nunca deixar
	// um documento truncado no lugar de um válido
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("erro ao gravar trajetória: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("erro ao efetivar trajetória: %w", err)
	}
	return nil
}

// Load recupera uma trajetória pelo nome, validando a coerência
// estrutural entre robot_mode e os waypoints
func (s *Store) Load(name string) (*models.Pathway, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler trajetória %q: %w", name, err)
	}

	var p models.Pathway
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("erro ao interpretar trajetória %q: %w", name, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("trajetória %q rejeitada: %w", name, err)
	}
	return &p, nil
}

// List devolve os nomes das trajetórias gravadas, em ordem alfabética
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar trajetórias: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
