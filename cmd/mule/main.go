/* Run a DTN mesh scenario under the in-process simulator. */
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	dtn "github.com/doismellburning/mule/src"
)

func main() {
	var scenarioFileName = pflag.StringP("scenario", "s", "", "Scenario file name (YAML).  Omit for the built-in default scenario.")
	var seed = pflag.Int64P("seed", "S", 0, "Override the scenario seed.")
	var durationSec = pflag.Int64P("duration", "d", 0, "Override the scenario duration in seconds.")
	var logPath = pflag.StringP("log", "l", "", "Override the delivery/track log path.")
	var verbose = pflag.BoolP("verbose", "v", false, "Debug logging.")

	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	var cfg = dtn.DefaultScenario()

	if *scenarioFileName != "" {
		var raw, readErr = os.ReadFile(*scenarioFileName)
		if readErr != nil {
			log.Fatal("Can't read scenario file.", "path", *scenarioFileName, "err", readErr)
		}
		if yamlErr := yaml.Unmarshal(raw, &cfg); yamlErr != nil {
			log.Fatal("Can't parse scenario file.", "path", *scenarioFileName, "err", yamlErr)
		}
	}

	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *durationSec != 0 {
		cfg.DurationSec = *durationSec
	}
	if *logPath != "" {
		cfg.LogPath = *logPath
	}

	var stats, runErr = dtn.RunScenario(cfg)
	if runErr != nil {
		log.Fatal("Scenario failed.", "err", runErr)
	}

	fmt.Printf("nodes=%d duration=%ds sent=%d received=%d delivery=%.1f%%\n",
		cfg.Nodes, cfg.DurationSec, stats.Sent, stats.Received, 100*stats.DeliveryRatio())
}
