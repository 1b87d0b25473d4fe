package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"quizflow/internal/infra/file"
)

// NewValidateCmd checks quiz definition files without starting anything.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE_OR_DIR...",
		Short: "Validate quiz definition files (YAML or JSON)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandQuizPaths(args)
			if err != nil {
				return err
			}
			failed := 0
			for _, path := range paths {
				if err := validateFile(path); err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s\n%v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d quiz files invalid", failed, len(paths))
			}
			return nil
		},
	}
}

func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	quiz, err := file.ParseQuiz(path, data)
	if err != nil {
		return err
	}
	return quiz.Validate()
}

// expandQuizPaths turns directories into the quiz files they contain.
func expandQuizPaths(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		ids, err := file.NewQuizLoader(arg).List()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			path, err := findQuizFile(arg, id)
			if err != nil {
				return nil, err
			}
			out = append(out, path)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no quiz files found")
	}
	return out, nil
}

func findQuizFile(dir, id string) (string, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(dir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("quiz %s not found in %s", id, dir)
}
