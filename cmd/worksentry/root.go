package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "worksentry",
		Short:         "Сервер учета рабочего времени",
		Long:          "worksentry принимает отчеты агентов, строит таймлайн рабочего дня\nи проверяет его по правилам отдела.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newServeCmd(),
		newSeedCmd(),
	)

	return cmd
}
