package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twitter/scd/common/client"
	"github.com/twitter/scd/scheduler/control"
)

type encodeCmd struct{}

func (c *encodeCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "encode COMMAND [FIELDS_JSON]",
		Short: "Print the hex encoded frame of a control command",
		Args:  cobra.RangeArgs(1, 2),
	}
}

func (c *encodeCmd) Run(cl *client.SimpleClient, cmd *cobra.Command, args []string) error {
	line := commandLine{Command: args[0]}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &line.Fields); err != nil {
			return fmt.Errorf("Invalid fields: %v", err)
		}
	}
	tag, err := control.ParseTag(strings.ToUpper(line.Command))
	if err != nil {
		return err
	}
	command, err := control.NewCommand(tag, line.Fields)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(control.Encode(command)))
	return nil
}

type decodeCmd struct{}

func (c *decodeCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "decode FRAME",
		Short: "Print a hex encoded command or response frame as JSON",
		Args:  cobra.ExactArgs(1),
	}
}

func (c *decodeCmd) Run(cl *client.SimpleClient, cmd *cobra.Command, args []string) error {
	frame, err := parseFrame(args[0])
	if err != nil {
		return err
	}
	command, err := control.Decode(frame)
	if err != nil {
		return err
	}
	fields, err := control.DecodePayload(command.Payload)
	if err != nil {
		return err
	}
	asJson, err := json.Marshal(commandLine{Command: command.Tag.String(), Fields: fields})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", asJson)
	return nil
}
