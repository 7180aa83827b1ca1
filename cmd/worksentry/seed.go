package main

import (
	"context"
	"fmt"
	"time"

	"worksentry/internal/config"
	"worksentry/internal/models"
	"worksentry/internal/service"
	"worksentry/pkg/ruleset"

	"github.com/spf13/cobra"
)

// newSeedCmd загружает правила классификации и правила отделов из YAML
func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Загрузить правила из YAML-файла",
		Long:  "Заменяет правила классификации и сохраняет правила отделов из файла.\nФормат файла тот же, что у RULES_FILE.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = config.GetConfig().RulesFile
			}
			if file == "" {
				return fmt.Errorf("не указан файл правил: --file или RULES_FILE")
			}

			rules, err := ruleset.Load(file)
			if err != nil {
				return err
			}

			a, err := newApp(config.GetConfig(), nil)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if err := a.services.Rules.ApplyFile(ctx, rules); err != nil {
				return err
			}
			a.services.Audit.Record(ctx, models.OperatorSystem, service.AuditRulesReload, "rules_file", file, map[string]int{
				"rules":       len(rules.Rules),
				"departments": len(rules.Departments),
			})

			fmt.Fprintf(cmd.OutOrStdout(), "Загружено правил: %d, отделов: %d\n", len(rules.Rules), len(rules.Departments))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "путь к YAML-файлу правил")
	return cmd
}
