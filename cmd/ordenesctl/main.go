// Command ordenesctl bundles the operator tasks of the order backend:
// password hashes, user seeding, migrations, upload purges and DLQ replays.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/deimercs/gestorfacturas/internal/config"
	"github.com/deimercs/gestorfacturas/internal/infra"
	"github.com/deimercs/gestorfacturas/internal/repository"
	"github.com/deimercs/gestorfacturas/internal/service"
	"github.com/deimercs/gestorfacturas/internal/worker"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ordenesctl",
		Short:         "Tareas de operacion del gestor de ordenes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// A local .env is optional; real environment variables win.
			_ = godotenv.Load()
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		},
	}
	cmd.AddCommand(hashCmd(), seedUserCmd(), migrateCmd(), purgeCmd(), replayDLQCmd())
	return cmd
}

func hashCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash <password>",
		Short: "Imprime el hash bcrypt de un password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := service.HashPassword(args[0], cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func seedUserCmd() *cobra.Command {
	var nombre, email, password string
	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Crea un usuario o reemplaza su password si ya existe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, _, err := openDB()
			if err != nil {
				return err
			}
			repo := repository.NewUsuarioRepository(db)

			existente, err := repo.FindByEmail(ctx, email)
			switch {
			case err == nil:
				hash, err := service.HashPassword(password, 0)
				if err != nil {
					return err
				}
				if err := repo.UpdatePassword(ctx, existente.ID, hash); err != nil {
					return err
				}
				log.Info().Str("email", existente.Email).Msg("password actualizado")
				return nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}

			u, err := service.NewAuthService(repo, nil, 0).CrearUsuario(ctx, nombre, email, password)
			if err != nil {
				return err
			}
			log.Info().Uint("id", u.ID).Str("email", u.Email).Msg("usuario creado")
			return nil
		},
	}
	cmd.Flags().StringVar(&nombre, "name", "Administrador", "nombre visible")
	cmd.Flags().StringVar(&email, "email", "", "email de login")
	cmd.Flags().StringVar(&password, "password", "", "password (min 8 caracteres)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes",
		RunE: func(*cobra.Command, []string) error {
			db, cfg, err := openDB()
			if err != nil {
				return err
			}
			if err := infra.RunMigrations(db, cfg.DatabaseURL); err != nil {
				return err
			}
			log.Info().Str("driver", cfg.DatabaseDriver).Msg("migraciones aplicadas")
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	var antiguedad time.Duration
	cmd := &cobra.Command{
		Use:   "purge-orphans",
		Short: "Elimina uploads sin registro en order_files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := openDB()
			if err != nil {
				return err
			}
			uploads, err := infra.NewUploadStore(cfg.UploadDir)
			if err != nil {
				return err
			}
			svc := service.NewArchivoService(repository.NewOrdenRepository(db), uploads)
			borrados, err := svc.PurgarHuerfanos(cmd.Context(), antiguedad)
			if err != nil {
				return err
			}
			for _, b := range borrados {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			log.Info().Int("eliminados", len(borrados)).Msg("purga terminada")
			return nil
		},
	}
	// Files younger than this may belong to a write still in flight.
	cmd.Flags().DurationVar(&antiguedad, "older-than", 24*time.Hour, "antiguedad minima del archivo")
	return cmd
}

func replayDLQCmd() *cobra.Command {
	var (
		queue  string
		limite int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "replay-dlq",
		Short: "Reencola los jobs de la DLQ de una cola",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rdb, err := infra.NewRedis(ctx, cfg.RedisURL, 0)
			if err != nil {
				return err
			}
			defer rdb.Close()

			if dryRun {
				dead, err := worker.PeekDLQ(ctx, rdb, queue, limite)
				if err != nil {
					return err
				}
				for _, d := range dead {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
						d.FailedAt.Format(time.RFC3339), d.Type, d.Error, d.Payload)
				}
				return nil
			}

			n, err := worker.ReplayDLQ(ctx, rdb, queue, limite)
			if err != nil {
				return err
			}
			log.Info().Str("queue", queue).Int("reencolados", n).Msg("dlq replay")
			return nil
		},
	}
	cmd.Flags().StringVar(&queue, "queue", worker.QueueEmail, "cola de origen ("+worker.QueueEmail+" | "+worker.QueueLimpieza+")")
	cmd.Flags().IntVar(&limite, "max", 100, "maximo de jobs a reencolar")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "solo listar los jobs, sin reencolar")
	return cmd
}

func openDB() (*gorm.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.DBDebug)
	if err != nil {
		return nil, nil, fmt.Errorf("conectar base de datos: %w", err)
	}
	return db, cfg, nil
}

