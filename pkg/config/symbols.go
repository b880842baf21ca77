package config

import (
	"fmt"
	"os"

	"CryptoAssist/internal/domain/models"

	"gopkg.in/yaml.v3"
)

// SymbolCatalog is the instrument list in file order: every major pair
// first, then every altcoin.
type SymbolCatalog struct {
	Entries []models.SymbolEntry
}

// Groups are read in this order regardless of their order in the file.
var symbolGroups = []string{models.GroupMajorPairs, models.GroupAltcoins}

type symbolAttrs struct {
	Enabled  bool `yaml:"enabled"`
	Priority *int `yaml:"priority"`
}

// LoadSymbols reads a YAML or JSON catalog of the form
//
//	crypto_symbols:
//	  major_pairs: {BTCUSDT: {enabled: true, priority: 1}, ...}
//	  altcoins:    {...}
func LoadSymbols(path string) (*SymbolCatalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}
	return ParseSymbols(b)
}

// ParseSymbols decodes through yaml.Node so map keys keep document order.
func ParseSymbols(b []byte) (*SymbolCatalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse symbols: %w", err)
	}
	if len(doc.Content) == 0 {
		return &SymbolCatalog{}, nil
	}

	root := mappingValue(doc.Content[0], "crypto_symbols")
	if root == nil {
		return nil, fmt.Errorf("parse symbols: missing crypto_symbols section")
	}

	cat := &SymbolCatalog{}
	for _, group := range symbolGroups {
		node := mappingValue(root, group)
		if node == nil {
			continue
		}
		if node.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("parse symbols: %s must be a mapping", group)
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			symbol := node.Content[i].Value
			var attrs symbolAttrs
			if err := node.Content[i+1].Decode(&attrs); err != nil {
				return nil, fmt.Errorf("parse symbols: %s.%s: %w", group, symbol, err)
			}
			cat.Entries = append(cat.Entries, models.SymbolEntry{
				Symbol:   symbol,
				Group:    group,
				Enabled:  attrs.Enabled,
				Priority: attrs.Priority,
			})
		}
	}
	return cat, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
