package client

import (
	"github.com/spf13/cobra"

	"github.com/twitter/scd/scheduler/config"
)

// Client interface that includes CLI handling
type CLIClient interface {
	Exec() error
}

// SimpleClient includes base fields required for implementing client
type SimpleClient struct {
	RootCmd  *cobra.Command
	Config   string
	LogLevel string
	Configs  *config.JSONConfigs
}

// Command interface used to run client commands
type Cmd interface {
	RegisterFlags() *cobra.Command
	Run(cl *SimpleClient, cmd *cobra.Command, args []string) error
}
