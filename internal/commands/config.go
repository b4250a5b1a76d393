package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runShowConfig,
}

var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	RunE:  runInitConfig,
}

func init() {
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(initConfigCmd)
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	defaultConfig := `# Landscaper Configuration

server:
  host: 0.0.0.0
  port: 9001
  read_timeout: 30s
  write_timeout: 30s
  shutdown_timeout: 10s
  debug: false

neo4j:
  url: bolt://localhost:7687
  username: neo4j
  password: password
  connect_timeout: 5m
  retry_interval: 5s

rabbitmq:
  host: localhost
  port: 5672
  username: guest
  password: guest
  exchanges:
    - nova
    - neutron
    - cinder
    - heat
  queue: landscaper-notifications
  topic: notifications.info
  retries: 10

physical_layer:
  hwloc_folder: ./data
  cpuinfo_folder: ./data
  coordinates_file: ./data/coordinates.json
  types_to_filter: []
  geo_types:
    - machine
    - rack

general:
  collectors:
    - hwloc
  event_listeners:
    - fswatch
  flush: false

security:
  rate_limit: 100
  allowed_origins:
    - "*"
`

	if err := os.WriteFile("config.yaml", []byte(defaultConfig), 0644); err != nil {
		return err
	}

	fmt.Println("✓ Created config.yaml")
	return nil
}
