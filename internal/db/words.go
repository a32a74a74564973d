package db

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"find-the-impostor/internal/game"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type wordCorpus struct {
	Categories []struct {
		Name  string   `yaml:"name"`
		Words []string `yaml:"words"`
	} `yaml:"categories"`
}

// ReadWordCorpus parses a YAML corpus file. Blank words are dropped and
// categories without words are skipped.
func ReadWordCorpus(path string) ([]game.WordCategory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseWordCorpus(data)
}

func ParseWordCorpus(data []byte) ([]game.WordCategory, error) {
	var corpus wordCorpus
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("parse word corpus: %w", err)
	}
	categories := make([]game.WordCategory, 0, len(corpus.Categories))
	for _, entry := range corpus.Categories {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		words := make([]string, 0, len(entry.Words))
		for _, word := range entry.Words {
			if word = strings.TrimSpace(word); word != "" {
				words = append(words, word)
			}
		}
		if len(words) == 0 {
			continue
		}
		categories = append(categories, game.WordCategory{Name: name, Words: words})
	}
	return categories, nil
}

// LoadWordCategories upserts categories into the word_categories table,
// replacing the word list of categories that already exist.
func LoadWordCategories(conn *gorm.DB, categories []game.WordCategory) (int, error) {
	if conn == nil {
		return 0, nil
	}
	loaded := 0
	for _, category := range categories {
		words, err := json.Marshal(category.Words)
		if err != nil {
			return loaded, err
		}
		record := WordCategory{
			Name:  category.Name,
			Words: datatypes.JSON(words),
		}
		err = conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"words", "updated_at"}),
		}).Create(&record).Error
		if err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// DecodeWords converts a stored row back into a category.
func DecodeWords(record WordCategory) (game.WordCategory, error) {
	var words []string
	if len(record.Words) > 0 {
		if err := json.Unmarshal(record.Words, &words); err != nil {
			return game.WordCategory{}, fmt.Errorf("decode words for %s: %w", record.Name, err)
		}
	}
	return game.WordCategory{Name: record.Name, Words: words}, nil
}
