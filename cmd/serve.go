// cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ihor-shndr/mychat/internal/db"
	"github.com/ihor-shndr/mychat/internal/log"
	"github.com/ihor-shndr/mychat/internal/server"
	"github.com/ihor-shndr/mychat/internal/storage"
	"github.com/ihor-shndr/mychat/internal/storage/backend"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	Long:  `Starts the HTTP server with the REST API and the websocket endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		port, _ := cmd.Flags().GetInt("port")
		host, _ := cmd.Flags().GetString("host")

		if err := initLogging(cmd); err != nil {
			return err
		}

		jwtSecret := os.Getenv("MYCHAT_JWT_SECRET")
		if jwtSecret == "" {
			jwtSecret = "super-secret-jwt-key-please-change-in-production"
			fmt.Println("Warning: Using default JWT secret. Set MYCHAT_JWT_SECRET in production.")
		}

		if env := os.Getenv("MYCHAT_DB"); env != "" && !cmd.Flags().Changed("db") {
			dbPath = env
		}

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database not found at %s. Run 'mychat init' first", dbPath)
		}

		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		// run migrations in case the schema is outdated
		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		images, err := buildImageStorage(cmd)
		if err != nil {
			return err
		}

		srv := server.New(database, server.Config{
			JWTSecret: jwtSecret,
			Images:    images,
		})

		addr := fmt.Sprintf("%s:%d", host, port)
		fmt.Printf("Starting mychat on %s\n", addr)
		fmt.Printf("  REST API:  http://%s/api\n", addr)
		fmt.Printf("  Websocket: ws://%s/ws\n", addr)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe(addr)
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			log.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

// initLogging configures the logger from flags and environment.
// Priority: CLI flags > environment variables > defaults.
func initLogging(cmd *cobra.Command) error {
	cfg := log.DefaultConfig()

	if level := os.Getenv("MYCHAT_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("MYCHAT_LOG_FORMAT"); format != "" {
		cfg.Format = format
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Format = format
	}

	return log.Init(cfg)
}

// buildImageStorage creates the attachment backend from flags and
// environment. Priority: CLI flags > environment variables > defaults.
func buildImageStorage(cmd *cobra.Command) (*storage.Images, error) {
	kind := os.Getenv("MYCHAT_STORAGE_BACKEND")
	if flagKind, _ := cmd.Flags().GetString("storage-backend"); cmd.Flags().Changed("storage-backend") {
		kind = flagKind
	}
	if kind == "" {
		kind = "local"
	}

	switch kind {
	case "local":
		path := os.Getenv("MYCHAT_STORAGE_PATH")
		if flagPath, _ := cmd.Flags().GetString("storage-path"); cmd.Flags().Changed("storage-path") || path == "" {
			path = flagPath
		}
		b, err := backend.NewLocal(path)
		if err != nil {
			return nil, fmt.Errorf("failed to init local storage: %w", err)
		}
		return storage.NewImages(b), nil

	case "s3":
		cfg := backend.S3Config{
			Bucket:          os.Getenv("MYCHAT_S3_BUCKET"),
			Region:          os.Getenv("MYCHAT_S3_REGION"),
			Endpoint:        os.Getenv("MYCHAT_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("MYCHAT_S3_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("MYCHAT_S3_SECRET_KEY"),
			UsePathStyle:    os.Getenv("MYCHAT_S3_PATH_STYLE") == "true",
			Prefix:          "attachments/",
		}
		if bucket, _ := cmd.Flags().GetString("s3-bucket"); bucket != "" {
			cfg.Bucket = bucket
		}
		if region, _ := cmd.Flags().GetString("s3-region"); region != "" {
			cfg.Region = region
		}
		if endpoint, _ := cmd.Flags().GetString("s3-endpoint"); endpoint != "" {
			cfg.Endpoint = endpoint
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b, err := backend.NewS3(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to init S3 storage: %w", err)
		}
		return storage.NewImages(b), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q (want local or s3)", kind)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("db", "mychat.db", "Path to database file")
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().String("log-format", "", "Log format: text or json")
	serveCmd.Flags().String("storage-backend", "local", "Attachment storage: local or s3")
	serveCmd.Flags().String("storage-path", "./uploads", "Directory for local attachment storage")
	serveCmd.Flags().String("s3-bucket", "", "S3 bucket for attachments")
	serveCmd.Flags().String("s3-region", "", "S3 region")
	serveCmd.Flags().String("s3-endpoint", "", "S3 endpoint URL (for S3-compatible services)")
}
