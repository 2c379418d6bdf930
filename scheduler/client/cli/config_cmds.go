package cli

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/scd/common/client"
	"github.com/twitter/scd/scheduler/config"
)

type showConfigCmd struct {
	printAsJson bool
}

func (c *showConfigCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "show_config",
		Short: "Print the selected config after defaults are applied",
	}
	r.Flags().BoolVar(&c.printAsJson, "json", false, "Print out the config as JSON")
	return r
}

func (c *showConfigCmd) Run(cl *client.SimpleClient, cmd *cobra.Command, args []string) error {
	if c.printAsJson {
		asJson, err := json.MarshalIndent(cl.Configs, "", "  ")
		if err != nil {
			return fmt.Errorf("Error converting config to JSON: %v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", asJson)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), cl.Configs.String())
	return nil
}

type validateConfigCmd struct{}

func (c *validateConfigCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "validate_config",
		Short: "Check that the selected config builds a scheduler",
	}
}

func (c *validateConfigCmd) Run(cl *client.SimpleClient, cmd *cobra.Command, args []string) error {
	sc, err := cl.Configs.CreateSchedulerConfig()
	if err != nil {
		return fmt.Errorf("Invalid scheduler config: %v", err)
	}
	if _, err := cl.Configs.CreateControlConfig(); err != nil {
		return fmt.Errorf("Invalid control config: %v", err)
	}
	log.Info(sc.String())
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d queues, %d node groups; presets: %v)\n",
		cl.Config, len(sc.Queues), len(sc.Nodes), config.Presets())
	return nil
}
