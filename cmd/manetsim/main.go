package main

// main.go is the command line driver for one scenario run.  Parameters
// come from the defaults, optionally a configuration file, and finally
// any individual flags, in that override order.

import (
	"fmt"
	"os"

	"github.com/adhoclab/manetsim"
	"github.com/iti/cmdline"
)

// cmdlineParameters configures for recognition of command line variables
func cmdlineParameters() *cmdline.CmdParser {
	// create an argument parser
	cp := cmdline.NewCmdParser()
	cp.AddFlag(cmdline.StringFlag, "cfg", false)       // experiment configuration file, yaml or json
	cp.AddFlag(cmdline.IntFlag, "size", false)         // number of nodes
	cp.AddFlag(cmdline.FloatFlag, "step", false)       // grid step, m
	cp.AddFlag(cmdline.FloatFlag, "time", false)       // simulation time, s
	cp.AddFlag(cmdline.BoolFlag, "pcap", false)        // write capture artifacts
	cp.AddFlag(cmdline.BoolFlag, "printRoutes", false) // write a route table dump
	cp.AddFlag(cmdline.IntFlag, "seed", false)         // master seed for the run
	cp.AddFlag(cmdline.StringFlag, "trace", false)     // observation trace artifact, yaml or json
	cp.AddFlag(cmdline.StringFlag, "prefix", false)    // artifact name prefix

	return cp
}

func main() {
	// configure command line variable recognition
	cp := cmdlineParameters()

	// parse the command line
	cp.Parse()

	cfg := manetsim.DfltExperimentCfg()

	// a configuration file, when given, replaces the defaults before
	// individual flags are applied
	if cp.IsLoaded("cfg") {
		fileCfg, err := manetsim.ReadExperimentCfg(cp.GetVar("cfg").(string))
		if err != nil {
			fatal(err)
		}
		cfg = *fileCfg
	}

	if cp.IsLoaded("size") {
		cfg.Size = cp.GetVar("size").(int)
	}
	if cp.IsLoaded("step") {
		cfg.Step = cp.GetVar("step").(float64)
	}
	if cp.IsLoaded("time") {
		cfg.Duration = cp.GetVar("time").(float64)
	}
	if cp.IsLoaded("pcap") {
		cfg.Pcap = cp.GetVar("pcap").(bool)
	}
	if cp.IsLoaded("printRoutes") {
		cfg.PrintRoutes = cp.GetVar("printRoutes").(bool)
	}
	if cp.IsLoaded("seed") {
		cfg.Seed = uint64(cp.GetVar("seed").(int))
	}
	if cp.IsLoaded("trace") {
		cfg.TraceFile = cp.GetVar("trace").(string)
	}
	if cp.IsLoaded("prefix") {
		cfg.ArtifactPrefix = cp.GetVar("prefix").(string)
	}

	// make sure the artifacts named by this configuration can be written
	files := []string{cfg.TraceFile}
	if cfg.PrintRoutes {
		files = append(files, cfg.ArtifactPrefix+".routes")
	}
	if valid, err := manetsim.CheckOutputFiles(files); !valid {
		fatal(err)
	}

	expt, err := manetsim.CreateExperiment(cfg, os.Stdout)
	if err != nil {
		fatal(err)
	}

	if err := expt.Run(); err != nil {
		fatal(err)
	}
	expt.Report(os.Stdout)
}

// fatal reports a configuration failure and aborts the process
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Configuration failed. Aborted: %v\n", err)
	os.Exit(1)
}
