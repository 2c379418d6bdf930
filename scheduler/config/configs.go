package config

// SchedulerConfigs the map of available configurations
var SchedulerConfigs = map[string]string{
	"default":      defaultConfig,
	"local.memory": localMemory,
	"local.redis":  localRedis,
}

// defaultConfig the configuration values used for sections a specific configuration leaves without a Type
const defaultConfig = `{
	"Scheduler": {
		"Type": "framework",
		"StepRate": "250ms",
		"MaxActivationsPerStep": 1000,
		"HandoffBuffer": 1024,
		"HistorySize": 10000
	},
	"Cluster": {
		"Type": "static",
		"Nodes": [{"Prefix": "node", "Count": 10, "Slots": 4}]
	},
	"Queues": {
		"Type": "static",
		"Default": "default",
		"Queues": [
			{
				"Name": "default",
				"PowerBins": "0,1000,5000",
				"NodeBins": "0,4,8,16",
				"PerNodeWatts": 250
			}
		]
	},
	"Algorithm": {
		"Type": "auto"
	},
	"Store": {
		"Type": "memory"
	},
	"Events": {
		"Type": "log",
		"Buffer": 256,
		"LogPerSecond": 10,
		"LogBurst": 20
	},
	"Control": {
		"Type": "inproc",
		"Name": "scd",
		"MaxRequests": 500,
		"MaxBurst": 100
	}
}`

// localMemory config for local.memory - !!! make sure this constant is added to SchedulerConfigs map above !!!
const localMemory = `{
	"Cluster": {
		"Type": "static",
		"Nodes": [
			{"Names": ["login1"], "Slots": 1},
			{"Prefix": "compute", "Count": 16, "Slots": 8, "Resources": {"MEMORY": "64"}}
		]
	},
	"Queues": {
		"Type": "static",
		"Default": "batch",
		"Queues": [
			{
				"Name": "interactive",
				"Priority": 10,
				"NodeBins": "0,2,4",
				"MaxSessions": 32,
				"QueueTimeLimit": "10m"
			},
			{
				"Name": "batch",
				"PowerBins": "0,1000,5000",
				"NodeBins": "0,4,8,16",
				"PerNodeWatts": 250
			}
		]
	}
}`

// localRedis config for local.redis - !!! make sure this constant is added to SchedulerConfigs map above !!!
const localRedis = `{
	"Store": {
		"Type": "redis",
		"Addr": "localhost:6379",
		"Prefix": "scd"
	},
	"Events": {
		"Type": "log",
		"Buffer": 1024,
		"LogPerSecond": 10,
		"LogBurst": 20,
		"Store": true
	}
}`
