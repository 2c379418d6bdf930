package cli

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	commoncli "github.com/twitter/scd/common/client"
	"github.com/twitter/scd/common/log/hooks"
	"github.com/twitter/scd/scheduler/config"
)

// SchedCLIClient includes fields required for CLI client handling
type SchedCLIClient struct {
	commoncli.SimpleClient
}

func (c *SchedCLIClient) Exec() error {
	return c.RootCmd.Execute()
}

func NewSimpleCLIClient() (commoncli.CLIClient, error) {
	c := &SchedCLIClient{}

	c.RootCmd = &cobra.Command{
		Use:                "scd",
		Short:              "scd runs and talks to the session scheduler",
		SilenceUsage:       true,
		PersistentPreRunE:  c.Init,
		Run:                func(*cobra.Command, []string) {},
		PersistentPostRunE: c.Close,
	}
	c.RootCmd.PersistentFlags().StringVar(&c.Config, "config", "local.memory",
		"Scheduler config: a preset name, JSON text or the path of a JSON file")
	c.RootCmd.PersistentFlags().StringVar(&c.LogLevel, "log_level", "info", "Log everything at this level and above (error|info|debug)")

	c.addCmd(&serveCmd{})
	c.addCmd(&showConfigCmd{})
	c.addCmd(&validateConfigCmd{})
	c.addCmd(&encodeCmd{})
	c.addCmd(&decodeCmd{})

	return c, nil
}

// Can only be called from cobra command run or hook
func (c *SchedCLIClient) Init(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Error(err)
		return err
	}
	log.SetLevel(level)
	if level >= log.DebugLevel {
		log.AddHook(hooks.NewContextHook())
	}

	c.Configs, err = config.GetSchedulerConfigs(c.Config)
	return err
}

// Needs cobra parameters for use from rootCmd
func (c *SchedCLIClient) Close(cmd *cobra.Command, args []string) error {
	c.Configs = nil
	return nil
}

func (c *SchedCLIClient) addCmd(cmd commoncli.Cmd) {
	cobraCmd := cmd.RegisterFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.Run(&c.SimpleClient, innerCmd, args)
	}
	c.RootCmd.AddCommand(cobraCmd)
}
