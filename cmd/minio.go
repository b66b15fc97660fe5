package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"melodex/config"
	"melodex/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect the asset bucket",
	Long:  `Lists materialized assets in the MinIO bucket, optionally filtered by prefix, with aggregate usage stats.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Connecting to MinIO at %s (bucket %s)...\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		objects, stats, err := store.ListObjects(ctx, minioPrefix, minioRecursive)
		if err != nil {
			log.Fatalf("Failed to list objects: %v", err)
		}

		if !minioStats {
			for _, obj := range objects {
				fmt.Printf("%12d  %s  %s\n", obj.Size, obj.LastModified.Format(time.RFC3339), obj.Key)
			}
		}

		fmt.Printf("\n%d objects, %s total", stats.TotalObjects, formatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Printf(", last modified %s", stats.LastModified.Format(time.RFC3339))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "filter objects by key prefix")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "show aggregate stats only")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", true, "recurse into folders")

	minioCmd.Example = `  # List every stored asset
  melodex minio

  # List materialized audio files
  melodex minio -p "songs/"

  # Bucket usage summary
  melodex minio -s`
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
