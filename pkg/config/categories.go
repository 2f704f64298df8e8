package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sotomaque/emoji-map-sub000/pkg/model"
)

// CategoriesConfig holds the emoji category table: the categories users can
// select, the coarser backend place type that serves each one, and the
// keywords sent upstream with a search.
type CategoriesConfig struct {
	Categories map[model.CategoryKey]Category `yaml:"categories"`

	// Internal lookup for emoji -> category resolution during decoding.
	byEmoji map[string]model.CategoryKey
}

// Category holds the configuration for a single emoji category.
type Category struct {
	Emoji     string   `yaml:"emoji"`
	PlaceType string   `yaml:"place_type"`
	Keywords  []string `yaml:"keywords"`
}

// DefaultCategories returns the built-in category table.
func DefaultCategories() *CategoriesConfig {
	cfg := &CategoriesConfig{
		Categories: map[model.CategoryKey]Category{
			"pizza":    {Emoji: "🍕", PlaceType: "restaurant", Keywords: []string{"pizza", "pizzeria"}},
			"beer":     {Emoji: "🍺", PlaceType: "bar", Keywords: []string{"beer", "brewery", "pub"}},
			"sushi":    {Emoji: "🍣", PlaceType: "restaurant", Keywords: []string{"sushi", "japanese"}},
			"coffee":   {Emoji: "☕", PlaceType: "cafe", Keywords: []string{"coffee", "espresso"}},
			"burger":   {Emoji: "🍔", PlaceType: "restaurant", Keywords: []string{"burger"}},
			"mexican":  {Emoji: "🌮", PlaceType: "restaurant", Keywords: []string{"taco", "mexican"}},
			"ramen":    {Emoji: "🍜", PlaceType: "restaurant", Keywords: []string{"ramen", "noodles"}},
			"dessert":  {Emoji: "🍦", PlaceType: "bakery", Keywords: []string{"dessert", "ice cream", "gelato"}},
			"wine":     {Emoji: "🍷", PlaceType: "bar", Keywords: []string{"wine", "wine bar"}},
			"salad":    {Emoji: "🥗", PlaceType: "restaurant", Keywords: []string{"salad"}},
			"sandwich": {Emoji: "🥪", PlaceType: "restaurant", Keywords: []string{"sandwich", "deli"}},
			"seafood":  {Emoji: "🦞", PlaceType: "restaurant", Keywords: []string{"seafood", "fish"}},
		},
	}
	cfg.buildIndex()
	return cfg
}

// LoadCategories loads a category table from a YAML file. The file replaces
// the built-in table entirely; keys are normalized to lower case and every
// entry needs an emoji and a place type.
func LoadCategories(path string) (*CategoriesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}

	var cfg CategoriesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse categories file: %w", err)
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("categories file %s defines no categories", path)
	}

	normalized := make(map[model.CategoryKey]Category, len(cfg.Categories))
	for k, v := range cfg.Categories {
		key := model.CategoryKey(strings.ToLower(strings.TrimSpace(string(k))))
		if v.Emoji == "" || v.PlaceType == "" {
			return nil, fmt.Errorf("category %q needs both emoji and place_type", key)
		}
		normalized[key] = v
	}
	cfg.Categories = normalized
	cfg.buildIndex()
	return &cfg, nil
}

func (c *CategoriesConfig) buildIndex() {
	c.byEmoji = make(map[string]model.CategoryKey, len(c.Categories))
	for key, cat := range c.Categories {
		c.byEmoji[cat.Emoji] = key
	}
}

// Get returns the category for a key.
func (c *CategoriesConfig) Get(key model.CategoryKey) (Category, bool) {
	cat, ok := c.Categories[key]
	return cat, ok
}

// Keys returns all category keys in sorted order.
func (c *CategoriesConfig) Keys() []model.CategoryKey {
	keys := make([]model.CategoryKey, 0, len(c.Categories))
	for k := range c.Categories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ByEmoji resolves an emoji back to its category key.
func (c *CategoriesConfig) ByEmoji(emoji string) (model.CategoryKey, bool) {
	key, ok := c.byEmoji[emoji]
	return key, ok
}
