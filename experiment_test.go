package manetsim

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestScenarioFourNodeLine runs the reference scenario: four nodes
// 100 m apart for 100 s with one flow from node 0 to node 3
func TestScenarioFourNodeLine(t *testing.T) {
	cfg := quietCfg()
	cfg.Size = 4
	cfg.Step = 100.0
	cfg.Duration = 100.0

	expt, out := runScenario(t, cfg)

	assert.Equal(t, Finished, expt.State())
	assert.Greater(t, expt.Pipeline().Received(), 0)
	assert.LessOrEqual(t, expt.Pipeline().LastEventTime(), 100.0)

	// the receiver is node 3; its sink reports the sender's address
	srcAddr := expt.Topo().Nodes()[0].Addr().String()
	assert.Contains(t, out, "3 received one packet from "+srcAddr)
	assert.Contains(t, out, "source "+srcAddr+" send to dest")
}

func TestZeroNodesFailsBeforeScheduling(t *testing.T) {
	cfg := DfltExperimentCfg()
	cfg.Size = 0

	expt, err := CreateExperiment(cfg, nil)
	require.Error(t, err)
	require.Nil(t, expt, "a rejected configuration must not produce an experiment")

	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestValidationRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(cfg *ExperimentCfg)
	}{
		{"negative step", func(cfg *ExperimentCfg) { cfg.Step = -5.0 }},
		{"zero duration", func(cfg *ExperimentCfg) { cfg.Duration = 0.0 }},
		{"sender out of range", func(cfg *ExperimentCfg) { cfg.Sender = 10; cfg.Size = 4 }},
		{"receiver out of range", func(cfg *ExperimentCfg) { cfg.Receiver = 4; cfg.Size = 4 }},
		{"sender is receiver", func(cfg *ExperimentCfg) { cfg.Receiver = 0 }},
		{"zero packet length", func(cfg *ExperimentCfg) { cfg.Flow.PktLen = 0 }},
		{"zero rate", func(cfg *ExperimentCfg) { cfg.Flow.Rate = 0.0 }},
		{"zero on period", func(cfg *ExperimentCfg) { cfg.Flow.OnPeriod = 0.0 }},
		{"inverted start interval", func(cfg *ExperimentCfg) { cfg.Flow.StartMin = 3.0; cfg.Flow.StartMax = 1.0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DfltExperimentCfg()
			tc.mutate(&cfg)
			_, err := CreateExperiment(cfg, nil)

			var ce *ConfigurationError
			require.Error(t, err)
			assert.True(t, errors.As(err, &ce))
		})
	}
}

func TestRunIsTerminal(t *testing.T) {
	cfg := quietCfg()
	cfg.Size = 2

	expt, _ := runScenario(t, cfg)
	require.Equal(t, Finished, expt.State())

	err := expt.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot run")
}

func TestUseRoutingOnlyBeforeRun(t *testing.T) {
	cfg := quietCfg()
	cfg.Size = 2

	expt, err := CreateExperiment(cfg, &strings.Builder{})
	require.NoError(t, err)
	require.NoError(t, expt.UseRouting(CreateShortestPathRouting()))

	require.NoError(t, expt.Run())
	assert.Error(t, expt.UseRouting(CreateShortestPathRouting()))
}

func TestRouteDumpArtifact(t *testing.T) {
	cfg := quietCfg()
	cfg.Size = 4
	cfg.PrintRoutes = true
	cfg.ArtifactPrefix = filepath.Join(t.TempDir(), "manet")

	expt, _ := runScenario(t, cfg)

	dump, err := os.ReadFile(cfg.ArtifactPrefix + ".routes")
	require.NoError(t, err)
	assert.Contains(t, string(dump), "route tables at t=8s")
	assert.Contains(t, string(dump), "node-0 ("+expt.Topo().Nodes()[0].Addr().String()+"):")
}

func TestPcapArtifacts(t *testing.T) {
	cfg := quietCfg()
	cfg.Size = 2
	cfg.Pcap = true
	cfg.ArtifactPrefix = filepath.Join(t.TempDir(), "manet")

	runScenario(t, cfg)

	f, err := os.Open(cfg.ArtifactPrefix + "-node-0.pcap")
	require.NoError(t, err)
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)

	// node 0 transmitted, so its capture holds at least one frame
	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, len(data), ci.CaptureLength)
	assert.Greater(t, ci.Length, 512)
}

func TestTraceArtifact(t *testing.T) {
	cfg := quietCfg()
	cfg.Size = 2
	cfg.TraceFile = filepath.Join(t.TempDir(), "events.yaml")

	expt, _ := runScenario(t, cfg)

	raw, err := os.ReadFile(cfg.TraceFile)
	require.NoError(t, err)

	var tm TraceManager
	require.NoError(t, yaml.Unmarshal(raw, &tm))
	assert.True(t, tm.InUse)
	assert.Equal(t, "node-0", tm.NameByID[0].Name)
	require.NotEmpty(t, tm.Events)
	assert.Equal(t, expt.Pipeline().Transmitted()+expt.Pipeline().Received(), len(tm.Events))
}

func TestReportSummarizesFinishedRun(t *testing.T) {
	cfg := quietCfg()
	cfg.Size = 2

	expt, _ := runScenario(t, cfg)

	var sb strings.Builder
	expt.Report(&sb)
	assert.Contains(t, sb.String(), "packets sent")
	assert.Contains(t, sb.String(), "receive events")
}
