package serve

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/magdb/mag/internal/auth"
	"github.com/magdb/mag/internal/config"
	"github.com/magdb/mag/internal/filestore"
	"github.com/magdb/mag/internal/logging"
	"github.com/magdb/mag/internal/mutation"
	"github.com/magdb/mag/internal/store"
	"github.com/magdb/mag/pkg/api"
)

func Run(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	ctx := context.Background()

	docStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer docStore.Close(context.Background())

	files, err := openFileStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open file store: %v", err)
	}

	logger := logging.New()
	engine := mutation.NewEngine(docStore, mutation.Options{
		Files:      files,
		Logger:     logger,
		HandleNone: cfg.Validation.HandleNone,
	})

	router := api.NewRouter(cfg, engine, authenticator(cfg), logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Timeout.GetReadTimeout()) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Timeout.GetWriteTimeout()) * time.Millisecond,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		fmt.Printf("Starting mag server on %s\n", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	fmt.Println("\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	fmt.Println("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "mongo":
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := store.DialMongo(dialCtx, cfg.Store.URI, cfg.Store.Database)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Connected to mongodb at %s\n", cfg.Store.URI)
		return s, nil
	case "memory", "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

func openFileStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	switch cfg.FileStore.Type {
	case "s3":
		s, err := filestore.NewS3Store(filestore.S3Config{
			Endpoint:  cfg.FileStore.Endpoint,
			Bucket:    cfg.FileStore.Bucket,
			AccessKey: cfg.FileStore.AccessKey,
			SecretKey: cfg.FileStore.SecretKey,
			Region:    cfg.FileStore.Region,
			UseSSL:    cfg.FileStore.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		fmt.Printf("Connected to object store at %s\n", cfg.FileStore.Endpoint)
		return s, nil
	case "filesystem":
		return filestore.NewFSStore(cfg.FileStore.RootPath)
	case "memory", "":
		return filestore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown file store type %q", cfg.FileStore.Type)
	}
}

// authenticator picks the actor resolution strategy: a configured
// token table when actors are declared, open access otherwise.
func authenticator(cfg *config.Config) auth.Authenticator {
	if len(cfg.Actors) == 0 {
		return auth.AllowAll{}
	}
	actors := make(map[string]auth.Actor, len(cfg.Actors))
	for token, a := range cfg.Actors {
		actors[token] = auth.Actor{ID: a.ID, Display: a.Display}
	}
	return auth.NewTokenAuthenticator(actors)
}
