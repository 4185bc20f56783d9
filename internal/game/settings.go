package game

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultWords is the word list used when none is configured
var DefaultWords = []string{
	"Pizza", "Playa", "Guitarra", "Montaña", "Café", "Libro", "Fútbol", "Perro",
	"Lluvia", "Verano", "Luna", "Cine", "Chocolate", "Bicicleta", "Fiesta",
}

// Settings bounds room parameters and configures word selection
type Settings struct {
	MinPlayers    int
	MaxPlayers    int
	MaxImpostors  int
	MaxRounds     int
	MaxNameLength int
	MaxClueLength int

	// RotateWord picks a new secret word for every round instead of once per game
	RotateWord bool
	Words      []string
}

// DefaultSettings returns the bounds the game ships with
func DefaultSettings() Settings {
	return Settings{
		MinPlayers:    MinPlayers,
		MaxPlayers:    12,
		MaxImpostors:  3,
		MaxRounds:     10,
		MaxNameLength: 24,
		MaxClueLength: 60,
		Words:         append([]string(nil), DefaultWords...),
	}
}

// Validate checks the settings are internally consistent
func (s Settings) Validate() error {
	if s.MinPlayers < MinPlayers {
		return fmt.Errorf("min players must be at least %d", MinPlayers)
	}
	if s.MaxPlayers < s.MinPlayers {
		return fmt.Errorf("max players (%d) below min players (%d)", s.MaxPlayers, s.MinPlayers)
	}
	if s.MaxImpostors < 1 {
		return fmt.Errorf("max impostors must be at least 1")
	}
	if s.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be at least 1")
	}
	if s.MaxNameLength < 1 || s.MaxClueLength < 1 {
		return fmt.Errorf("name and clue length limits must be positive")
	}
	if len(s.Words) == 0 {
		return fmt.Errorf("word list is empty")
	}
	for i, w := range s.Words {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("word %d is blank", i)
		}
	}
	return nil
}

// LoadWords reads a JSON array of strings
func LoadWords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var words []string
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%s contains no words", path)
	}
	return words, nil
}
