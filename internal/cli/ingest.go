package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luminara-health/copilot/internal/config"
	"github.com/luminara-health/copilot/internal/database"
	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/service"
)

// IngestCmd returns the ingest command, which loads a text file straight into
// the knowledge store without going through the HTTP API.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a text file as a knowledge source",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().String("title", "", "Source title (defaults to the file name)")
	cmd.Flags().String("kind", "article", "Source kind: lesson, article or manual")
	cmd.Flags().String("course", "", "Course ID to attach the source to")
	cmd.Flags().String("lesson", "", "Lesson ID to attach the source to")
	cmd.Flags().Bool("public", false, "Mark the source as publicly searchable")
	cmd.Flags().String("language", "", "Source language code")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("%s is empty", path)
	}

	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	kind, _ := cmd.Flags().GetString("kind")
	course, _ := cmd.Flags().GetString("course")
	lesson, _ := cmd.Flags().GetString("lesson")
	public, _ := cmd.Flags().GetBool("public")
	language, _ := cmd.Flags().GetString("language")

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	deps, err := buildServices(ctx, cfg, pool)
	if err != nil {
		return err
	}

	result, err := deps.ingest.Ingest(ctx, service.IngestInput{
		Title:    title,
		Kind:     domain.SourceKind(kind),
		CourseID: course,
		LessonID: lesson,
		IsPublic: public,
		Language: language,
		Text:     string(data),
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Ingested %s: source %s with %d chunks\n", path, result.SourceID, result.ChunkCount)
	return nil
}
