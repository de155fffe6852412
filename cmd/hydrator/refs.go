package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hydrator/internal/config"
	"hydrator/internal/remoteitem"
	"hydrator/internal/scheduler"
	"hydrator/internal/track"
)

// referenceList accepts either a bare list or a document with a
// references key. JSON input parses as YAML.
type referenceList struct {
	References []track.Reference `yaml:"references"`
}

// loadReferenceFile reads a YAML or JSON list of {feedGuid, itemGuid}.
// Entries are returned as written; malformed ones become unresolved outcomes
// during the run rather than aborting it.
func loadReferenceFile(path string) ([]track.Reference, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read references: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse references %s: %w", path, err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var refs []track.Reference
		if err := root.Decode(&refs); err != nil {
			return nil, fmt.Errorf("decode references %s: %w", path, err)
		}
		return refs, nil
	case yaml.MappingNode:
		var list referenceList
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("decode references %s: %w", path, err)
		}
		return list.References, nil
	default:
		return nil, fmt.Errorf("parse references %s: expected a list", path)
	}
}

// feedReferences holds the references of one parsed feed file.
type feedReferences struct {
	Path     string
	Document *remoteitem.Document
}

func parseFeedFile(path string) (feedReferences, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return feedReferences{}, err
	}
	file, err := os.Open(expanded)
	if err != nil {
		return feedReferences{}, fmt.Errorf("open feed: %w", err)
	}
	defer file.Close()

	doc, err := remoteitem.Parse(file)
	if err != nil {
		return feedReferences{Path: expanded, Document: doc}, fmt.Errorf("%s: %w", path, err)
	}
	return feedReferences{Path: expanded, Document: doc}, nil
}

// collectReferences gathers references from a reference file and feed files
// in argument order. Each reference keeps its position within its own
// source: the reference file or the feed's list of remote items.
func collectReferences(refsPath string, feedPaths []string) ([]scheduler.Item, []feedReferences, error) {
	var items []scheduler.Item
	if refsPath != "" {
		loaded, err := loadReferenceFile(refsPath)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, scheduler.Items(loaded)...)
	}
	feeds := make([]feedReferences, 0, len(feedPaths))
	for _, path := range feedPaths {
		feed, err := parseFeedFile(path)
		if err != nil {
			return nil, nil, err
		}
		feeds = append(feeds, feed)
		for _, ref := range feed.Document.References {
			items = append(items, scheduler.Item{Reference: ref.Reference, Ordinal: ref.Position})
		}
	}
	if refsPath == "" && len(feedPaths) == 0 {
		return nil, nil, errors.New("nothing to resolve: pass --refs FILE or feed files")
	}
	return items, feeds, nil
}
