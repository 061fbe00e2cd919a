package load

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/magdb/mag/internal/config"
	"github.com/magdb/mag/internal/document"
	"github.com/magdb/mag/internal/schema"
	"github.com/magdb/mag/internal/store"
)

// Run loads model definition files into the model collection. Each
// argument is a JSON file holding one model document or an array of
// them; directories are scanned for *.json entries.
func Run(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		log.Fatal("load: no model files given")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer s.Close(context.Background())

	models, err := collectModels(paths)
	if err != nil {
		log.Fatalf("load: %v", err)
	}

	coll := s.Collection(store.ModelCollection)
	for _, model := range models {
		id := document.ID(model)
		err := coll.Replace(ctx, store.ByID(id), model)
		if errors.Is(err, store.ErrNotFound) {
			err = coll.Insert(ctx, model)
		}
		if err != nil {
			log.Fatalf("load: model %s: %v", id, err)
		}
		fmt.Printf("Loaded model %s\n", id)
	}
	fmt.Printf("Loaded %d model(s)\n", len(models))
}

func collectModels(paths []string) ([]document.Document, error) {
	var models []document.Document
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			entries, err := filepath.Glob(filepath.Join(path, "*.json"))
			if err != nil {
				return nil, err
			}
			nested, err := collectModels(entries)
			if err != nil {
				return nil, err
			}
			models = append(models, nested...)
			continue
		}

		fileModels, err := readModelFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		models = append(models, fileModels...)
	}
	return models, nil
}

func readModelFile(path string) ([]document.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var models []document.Document
	var batch []map[string]any
	if err := json.Unmarshal(raw, &batch); err == nil {
		for _, doc := range batch {
			models = append(models, doc)
		}
	} else {
		var single map[string]any
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("not a JSON object or array: %w", err)
		}
		models = append(models, single)
	}

	for _, model := range models {
		if document.ID(model) == "" {
			return nil, errors.New("model document is missing _id")
		}
		// Parse up front so malformed definitions never reach the store.
		if _, err := schema.ParseModel(model); err != nil {
			return nil, fmt.Errorf("model %s: %w", document.ID(model), err)
		}
	}
	return models, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "mongo":
		return store.DialMongo(ctx, cfg.Store.URI, cfg.Store.Database)
	case "memory", "":
		return nil, errors.New("load requires a persistent store; configure store.type = mongo")
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}
