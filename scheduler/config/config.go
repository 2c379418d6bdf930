// Package config reads the scheduler daemon's JSON configuration: named presets,
// files, or JSON text given on the command line.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/scheduler/control"
	"github.com/twitter/scd/scheduler/queue"
	"github.com/twitter/scd/scheduler/server"
	"github.com/twitter/scd/scheduler/store"
)

// JSONConfigs holds the original json config sections
type JSONConfigs struct {
	Scheduler SchedulerJSONConfig `json:"Scheduler"`
	Cluster   ClusterJSONConfig   `json:"Cluster"`
	Queues    QueuesJSONConfig    `json:"Queues"`
	Algorithm AlgorithmJSONConfig `json:"Algorithm"`
	Store     StoreJSONConfig     `json:"Store"`
	Events    EventsJSONConfig    `json:"Events"`
	Control   ControlJSONConfig   `json:"Control"`
}

func (c JSONConfigs) String() string {
	return fmt.Sprintf("\n%s\n%s\n%s\n%s\n%s\n%s\n%s",
		c.Scheduler, c.Cluster, c.Queues, c.Algorithm, c.Store, c.Events, c.Control)
}

type SchedulerJSONConfig struct {
	Type                  string `json:"Type"`      // framework
	DebugMode             bool   `json:"DebugMode"` // default to false
	StepRate              string `json:"StepRate"`  // default to 250ms
	MaxActivationsPerStep int    `json:"MaxActivationsPerStep"`
	HandoffBuffer         int    `json:"HandoffBuffer"`
	HistorySize           int    `json:"HistorySize"`
	PowerBudget           int64  `json:"PowerBudget"` // watts, 0 for unlimited
	Hostname              string `json:"Hostname"`
}

func (sc SchedulerJSONConfig) String() string {
	return fmt.Sprintf("SchedulerJSONConfig: Type: %s, DebugMode: %t, StepRate: %s, MaxActivationsPerStep: %d, "+
		"HandoffBuffer: %d, HistorySize: %d, PowerBudget: %d, Hostname: %s",
		sc.Type, sc.DebugMode, sc.StepRate, sc.MaxActivationsPerStep, sc.HandoffBuffer, sc.HistorySize,
		sc.PowerBudget, sc.Hostname)
}

type NodeJSONConfig struct {
	Prefix    string            `json:"Prefix"`
	Count     int               `json:"Count"`
	Names     []string          `json:"Names"`
	Slots     int               `json:"Slots"`
	Resources map[string]string `json:"Resources"`
}

type ClusterJSONConfig struct {
	Type  string           `json:"Type"` // static
	Nodes []NodeJSONConfig `json:"Nodes"`
}

func (c ClusterJSONConfig) String() string {
	count := 0
	for _, n := range c.Nodes {
		count += n.Count + len(n.Names)
	}
	return fmt.Sprintf("ClusterJSONConfig: Type: %s, Nodes: %d", c.Type, count)
}

type QueueJSONConfig struct {
	Name           string `json:"Name"`
	Priority       int    `json:"Priority"`
	PowerBins      string `json:"PowerBins"` // ex: "0,1000,5000"
	NodeBins       string `json:"NodeBins"`  // ex: "0,4,8,16"
	MaxSessions    int    `json:"MaxSessions"`
	PerNodeWatts   int64  `json:"PerNodeWatts"`
	QueueTimeLimit string `json:"QueueTimeLimit"` // ex: "1h", empty for no limit
}

type QueuesJSONConfig struct {
	Type    string            `json:"Type"` // static
	Default string            `json:"Default"`
	Queues  []QueueJSONConfig `json:"Queues"`
}

func (c QueuesJSONConfig) String() string {
	var names []string
	for _, q := range c.Queues {
		names = append(names, q.Name)
	}
	return fmt.Sprintf("QueuesJSONConfig: Type: %s, Default: %s, Queues: %v", c.Type, c.Default, names)
}

type AlgorithmJSONConfig struct {
	Type    string            `json:"Type"`    // auto
	Include []string          `json:"Include"` // components to consider, empty for all
	Params  map[string]string `json:"Params"`
}

func (c AlgorithmJSONConfig) String() string {
	return fmt.Sprintf("AlgorithmJSONConfig: Type: %s, Include: %v, Params: %v", c.Type, c.Include, c.Params)
}

type StoreJSONConfig struct {
	Type   string `json:"Type"` // memory, redis
	Addr   string `json:"Addr"`
	Prefix string `json:"Prefix"`
}

func (c StoreJSONConfig) String() string {
	return fmt.Sprintf("StoreJSONConfig: Type: %s, Addr: %s, Prefix: %s", c.Type, c.Addr, c.Prefix)
}

type EventsJSONConfig struct {
	Type         string  `json:"Type"` // log
	Buffer       int     `json:"Buffer"`
	LogPerSecond float64 `json:"LogPerSecond"`
	LogBurst     int     `json:"LogBurst"`
	Store        bool    `json:"Store"` // also write events to the store
}

func (c EventsJSONConfig) String() string {
	return fmt.Sprintf("EventsJSONConfig: Type: %s, Buffer: %d, LogPerSecond: %g, LogBurst: %d, Store: %t",
		c.Type, c.Buffer, c.LogPerSecond, c.LogBurst, c.Store)
}

type ControlJSONConfig struct {
	Type        string `json:"Type"` // inproc
	Name        string `json:"Name"`
	MaxRequests int    `json:"MaxRequests"` // per second
	MaxBurst    int    `json:"MaxBurst"`
}

func (c ControlJSONConfig) String() string {
	return fmt.Sprintf("ControlJSONConfig: Type: %s, Name: %s, MaxRequests: %d, MaxBurst: %d",
		c.Type, c.Name, c.MaxRequests, c.MaxBurst)
}

// GetConfigText resolves a config selector: the name of a preset, JSON text, or
// the path of a JSON file.
func GetConfigText(configSelector string) ([]byte, error) {
	if configText, ok := SchedulerConfigs[configSelector]; ok {
		return []byte(configText), nil
	}
	if strings.HasPrefix(strings.TrimSpace(configSelector), "{") {
		log.Infof("using config as JSON text")
		return []byte(configSelector), nil
	}
	configText, err := os.ReadFile(configSelector)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration %s, supported values are %v, JSON text or a file: %v",
			configSelector, Presets(), err)
	}
	return configText, nil
}

// Presets lists the names of the built-in configurations.
func Presets() []string {
	keys := make([]string, 0, len(SchedulerConfigs))
	for k := range SchedulerConfigs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetSchedulerConfigs parses the selected config. Sections whose Type is empty
// take their values from the default preset.
func GetSchedulerConfigs(configSelector string) (*JSONConfigs, error) {
	defaultConfigText, _ := GetConfigText("default")
	defaultConfig := &JSONConfigs{}
	if err := json.Unmarshal(defaultConfigText, defaultConfig); err != nil {
		return nil, fmt.Errorf("couldn't parse the default config: %v", err)
	}

	configText, err := GetConfigText(configSelector)
	if err != nil {
		return nil, err
	}
	configs := &JSONConfigs{}
	if err := json.Unmarshal(configText, configs); err != nil {
		return nil, fmt.Errorf("couldn't parse top-level config: %v", err)
	}

	if configs.Scheduler.Type == "" {
		log.Infof("using default Scheduler config")
		configs.Scheduler = defaultConfig.Scheduler
	}
	if configs.Cluster.Type == "" {
		log.Infof("using default Cluster config")
		configs.Cluster = defaultConfig.Cluster
	}
	if configs.Queues.Type == "" {
		log.Infof("using default Queues config")
		configs.Queues = defaultConfig.Queues
	}
	if configs.Algorithm.Type == "" {
		log.Infof("using default Algorithm config")
		configs.Algorithm = defaultConfig.Algorithm
	}
	if configs.Store.Type == "" {
		log.Infof("using default Store config")
		configs.Store = defaultConfig.Store
	}
	if configs.Events.Type == "" {
		log.Infof("using default Events config")
		configs.Events = defaultConfig.Events
	}
	if configs.Control.Type == "" {
		log.Infof("using default Control config")
		configs.Control = defaultConfig.Control
	}
	return configs, nil
}

func parseDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", name)
	}
	return d, nil
}

// CreateSchedulerConfig builds the framework's configuration from every section.
func (c *JSONConfigs) CreateSchedulerConfig() (*server.SchedulerConfiguration, error) {
	if c.Scheduler.Type != "framework" {
		return nil, fmt.Errorf("unsupported scheduler type: %s", c.Scheduler.Type)
	}
	if c.Cluster.Type != "static" {
		return nil, fmt.Errorf("unsupported cluster type: %s", c.Cluster.Type)
	}
	if c.Queues.Type != "static" {
		return nil, fmt.Errorf("unsupported queues type: %s", c.Queues.Type)
	}
	if c.Algorithm.Type != "auto" {
		return nil, fmt.Errorf("unsupported algorithm type: %s", c.Algorithm.Type)
	}
	if c.Events.Type != "log" {
		return nil, fmt.Errorf("unsupported events type: %s", c.Events.Type)
	}

	var err error
	sc := &server.SchedulerConfiguration{
		DebugMode:             c.Scheduler.DebugMode,
		MaxActivationsPerStep: c.Scheduler.MaxActivationsPerStep,
		HandoffBuffer:         c.Scheduler.HandoffBuffer,
		HistorySize:           c.Scheduler.HistorySize,
		PowerBudget:           c.Scheduler.PowerBudget,
		Hostname:              c.Scheduler.Hostname,
		DefaultQueue:          c.Queues.Default,
		Algorithms:            c.Algorithm.Include,
		AlgorithmParams:       c.Algorithm.Params,
		EventBuffer:           c.Events.Buffer,
		LogEventsPerSecond:    c.Events.LogPerSecond,
		LogEventsBurst:        c.Events.LogBurst,
		StoreEvents:           c.Events.Store,
	}
	if sc.StepRate, err = parseDuration("StepRate", c.Scheduler.StepRate); err != nil {
		return nil, err
	}
	for _, n := range c.Cluster.Nodes {
		sc.Nodes = append(sc.Nodes, server.NodeConfiguration{
			Prefix:    n.Prefix,
			Count:     n.Count,
			Names:     n.Names,
			Slots:     n.Slots,
			Resources: n.Resources,
		})
	}
	for _, q := range c.Queues.Queues {
		qc, err := q.create()
		if err != nil {
			return nil, errors.Wrapf(err, "queue %s", q.Name)
		}
		sc.Queues = append(sc.Queues, qc)
	}
	return sc, nil
}

func (q QueueJSONConfig) create() (server.QueueConfiguration, error) {
	qc := server.QueueConfiguration{
		Name:     q.Name,
		Priority: q.Priority,
		Config: queue.Config{
			MaxSessions:  q.MaxSessions,
			PerNodeWatts: q.PerNodeWatts,
		},
	}
	var err error
	if qc.PowerBins, err = queue.ParseBinRanges(q.PowerBins); err != nil {
		return qc, err
	}
	if qc.NodeBins, err = queue.ParseBinRanges(q.NodeBins); err != nil {
		return qc, err
	}
	qc.QueueTimeLimit, err = parseDuration("QueueTimeLimit", q.QueueTimeLimit)
	return qc, err
}

func (c *JSONConfigs) CreateStoreConfig() store.Config {
	return store.Config{Type: c.Store.Type, Addr: c.Store.Addr, Prefix: c.Store.Prefix}
}

// ControlConfig is the in-process control endpoint's setup.
type ControlConfig struct {
	Name        string
	MaxRequests int
	MaxBurst    int
}

func (c *JSONConfigs) CreateControlConfig() (ControlConfig, error) {
	if c.Control.Type != "inproc" {
		return ControlConfig{}, fmt.Errorf("unsupported control type: %s", c.Control.Type)
	}
	cc := ControlConfig{Name: c.Control.Name, MaxRequests: c.Control.MaxRequests, MaxBurst: c.Control.MaxBurst}
	if cc.Name == "" {
		cc.Name = "scd"
	}
	if cc.MaxRequests <= 0 {
		cc.MaxRequests = control.DefaultMaxRequests
	}
	if cc.MaxBurst <= 0 {
		cc.MaxBurst = control.DefaultMaxBurst
	}
	return cc, nil
}
