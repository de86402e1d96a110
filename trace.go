package manetsim

// trace.go gathers the observation events of a run into a serializable
// record for post-run analysis.  The trace manager carries a dictionary
// mapping node ids to (name,type) pairs and the ordered list of event
// records, and writes the whole structure to a YAML or JSON artifact
// at teardown.

import (
	"encoding/json"
	"os"
	"path"

	"github.com/iti/evt/vrtime"
	"gopkg.in/yaml.v3"
)

// NameType is an entry in a dictionary created for a trace
// that maps object id numbers to a (name,type) pair
type NameType struct {
	Name string
	Type string
}

// An EventRecord is the serializable form of one observation event
type EventRecord struct {
	Time   float64 `json:"time" yaml:"time"`
	Ticks  int64   `json:"ticks" yaml:"ticks"`
	NodeID int     `json:"nodeid" yaml:"nodeid"`
	Kind   string  `json:"kind" yaml:"kind"`
	Src    string  `json:"src,omitempty" yaml:"src,omitempty"`
	Dst    string  `json:"dst,omitempty" yaml:"dst,omitempty"`
}

// TraceManager gathers information about an experiment and the packet
// events observed while executing it
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each node id
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all observation events of this experiment, in emission order
	Events []EventRecord `json:"events" yaml:"events"`
}

// CreateTraceManager is a constructor.  It saves the name of the
// experiment and a flag indicating whether the trace manager is active.
// By testing this flag we can inhibit gathering a trace when we don't
// want it, while embedding calls to its methods everywhere we need them
// when it is.
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Events = make([]EventRecord, 0)
	return tm
}

// Active tells the caller whether the trace manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm.InUse
}

// AddName is used to add an element to the id -> (name,type) dictionary
func (tm *TraceManager) AddName(id int, name string, objDesc string) {
	if tm.InUse {
		_, present := tm.NameByID[id]
		if present {
			panic("duplicated id in AddName")
		}
		tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	}
}

// AddEvent converts an observation event to its record form and stores it
func (tm *TraceManager) AddEvent(vrt vrtime.Time, ev ObservationEvent) {
	if !tm.InUse {
		return
	}

	rec := EventRecord{
		Time:   ev.Time,
		Ticks:  vrt.Ticks(),
		NodeID: ev.NodeID,
		Kind:   ev.Kind.String(),
	}
	if ev.Src.IsValid() {
		rec.Src = ev.Src.String()
	}
	if ev.Dst.IsValid() {
		rec.Dst = ev.Dst.String()
	}
	tm.Events = append(tm.Events, rec)
}

// WriteToFile stores the trace to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension
// of this name.
func (tm *TraceManager) WriteToFile(filename string) bool {
	if !tm.InUse {
		return false
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*tm)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*tm, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	f.Close()
	return true
}
