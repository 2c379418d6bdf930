package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/common/log/hooks"
	"github.com/twitter/scd/scheduler/client/cli"
)

// Scheduler binary
//	Supported commands: (see "-h" for all options)
//		serve [--input file] [--wait] [--stats]
//		show_config [--json]
//		validate_config
//		encode [command] [fields json]
//		decode [frame]
//	Global flags:
//		--config [<preset|JSON text|file> scheduler config]
// 		--log_level [<error|info|debug> level and above should be logged]

func main() {
	log.AddHook(hooks.NewContextHook())

	cl, err := cli.NewSimpleCLIClient()
	if err != nil {
		log.Fatal("Failed to create new scd CLI client: ", err)
	}

	err = cl.Exec()
	if err != nil {
		log.Fatal("Error running scd ", err)
	}
}
