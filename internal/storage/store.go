// Package storage persists optimization runs under a data directory, one
// directory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynopt/internal/config"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/optim"
	"github.com/san-kum/dynopt/internal/params"
	"github.com/san-kum/dynopt/internal/tool"
)

const (
	metadataFile = "metadata.json"
	solutionFile = "solution.yaml"
	historyFile  = "history.csv"
	statesFile   = "states.csv"
	configFile   = "config.yaml"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Model       string        `json:"model"`
	Timestamp   time.Time     `json:"timestamp"`
	Integrator  string        `json:"integrator"`
	Controller  string        `json:"controller"`
	Dt          float64       `json:"dt"`
	Duration    float64       `json:"duration"`
	Method      string        `json:"method"`
	Status      string        `json:"status"`
	Converged   bool          `json:"converged"`
	Reason      string        `json:"reason,omitempty"`
	Iterations  int           `json:"iterations"`
	Evaluations int           `json:"evaluations"`
	Objective   float64       `json:"objective"`
	Runtime     time.Duration `json:"runtime"`
	Parameters  []string      `json:"parameters"`
	// Terms is the raw value of each objective at the solution.
	Terms map[string]float64 `json:"terms,omitempty"`
}

// SaveRun writes a finished run and returns its id. cfg may be nil; when set
// it is stored alongside so the run can be repeated.
func (s *Store) SaveRun(rep *tool.RunReport, cfg *config.Config) (string, error) {
	if rep == nil || rep.Solver == nil {
		return "", errors.New("storage: report has no solver result")
	}

	runID, runDir, err := s.newRunDir(rep.Tool)
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Name:        rep.Tool,
		Timestamp:   time.Now(),
		Method:      rep.Solver.Method,
		Status:      rep.Solver.Status,
		Converged:   rep.Solver.Converged,
		Reason:      rep.Solver.Reason,
		Iterations:  rep.Solver.Iterations,
		Evaluations: rep.Solver.Evaluations,
		Objective:   rep.Objective,
		Runtime:     rep.Solver.Runtime,
		Parameters:  rep.Solution.Names(),
	}
	if len(rep.Terms) > 0 {
		meta.Terms = make(map[string]float64, len(rep.Terms))
		for _, term := range rep.Terms {
			meta.Terms[term.Name] = term.Raw
		}
	}
	if cfg != nil {
		meta.Model = cfg.Model
		meta.Integrator = cfg.Integrator
		meta.Controller = cfg.Controller.Type
		meta.Dt = cfg.Simulation.Dt
		meta.Duration = cfg.Simulation.Duration
		if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
			return "", err
		}
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeYAML(filepath.Join(runDir, solutionFile), rep.Solution); err != nil {
		return "", err
	}
	if err := writeHistory(filepath.Join(runDir, historyFile), meta.Parameters, rep.Solver.History); err != nil {
		return "", err
	}
	if rep.Trajectory != nil {
		if err := writeStates(filepath.Join(runDir, statesFile), rep.Trajectory); err != nil {
			return "", err
		}
	}
	return runID, nil
}

// newRunDir creates a fresh directory named after the tool and the time.
func (s *Store) newRunDir(name string) (string, string, error) {
	if err := s.Init(); err != nil {
		return "", "", err
	}
	slug := strings.NewReplacer("/", "-", " ", "-", string(filepath.Separator), "-").Replace(name)
	if slug == "" {
		slug = "run"
	}
	base := fmt.Sprintf("%s_%d", slug, time.Now().Unix())
	for i := 0; ; i++ {
		runID := base
		if i > 0 {
			runID = fmt.Sprintf("%s_%d", base, i)
		}
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", err
		}
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeHistory(path string, names []string, steps []optim.Step) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"iteration", "evaluations", "objective"}, names...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, step := range steps {
		row := []string{strconv.Itoa(step.Iteration), strconv.Itoa(step.Evaluations), formatFloat(step.Objective)}
		for _, v := range step.Values {
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeStates(path string, traj *dynamo.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(traj.States) == 0 {
		w.Flush()
		return w.Error()
	}

	header := []string{"time"}
	for i := range traj.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	numControls := 0
	if len(traj.Controls) > 0 {
		numControls = len(traj.Controls[0])
		for i := 0; i < numControls; i++ {
			header = append(header, fmt.Sprintf("u%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range traj.States {
		row := []string{formatFloat(traj.Times[i])}
		for _, val := range traj.States[i] {
			row = append(row, formatFloat(val))
		}
		// The last state has no control applied after it.
		if i < len(traj.Controls) {
			for _, val := range traj.Controls[i] {
				row = append(row, formatFloat(val))
			}
		} else {
			for j := 0; j < numControls; j++ {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns stored runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) runPath(runID, file string) (string, error) {
	if runID == "" || runID != filepath.Base(runID) {
		return "", fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	return filepath.Join(s.baseDir, runID, file), nil
}

func (s *Store) open(runID, file string) (*os.File, error) {
	path, err := s.runPath(runID, file)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return f, err
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	f, err := s.open(runID, metadataFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var meta RunMetadata
	if err := json.NewDecoder(f).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadSolution(runID string) (params.ValueSet, error) {
	path, err := s.runPath(runID, solutionFile)
	if err != nil {
		return params.ValueSet{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return params.ValueSet{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return params.ValueSet{}, err
	}
	var set params.ValueSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return params.ValueSet{}, fmt.Errorf("%s: %w", runID, err)
	}
	return set, nil
}

// LoadConfig returns the setup a run was started from.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	path, err := s.runPath(runID, configFile)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func readCSV(f *os.File) ([][]string, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func (s *Store) LoadHistory(runID string) ([]optim.Step, error) {
	f, err := s.open(runID, historyFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := readCSV(f)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []optim.Step{}, nil
	}

	steps := make([]optim.Step, 0, len(records)-1)
	for line, record := range records[1:] {
		if len(record) < 3 {
			return nil, fmt.Errorf("%s: history line %d: %d fields", runID, line+2, len(record))
		}
		var step optim.Step
		if step.Iteration, err = strconv.Atoi(record[0]); err != nil {
			return nil, fmt.Errorf("%s: history line %d: %w", runID, line+2, err)
		}
		if step.Evaluations, err = strconv.Atoi(record[1]); err != nil {
			return nil, fmt.Errorf("%s: history line %d: %w", runID, line+2, err)
		}
		if step.Objective, err = strconv.ParseFloat(record[2], 64); err != nil {
			return nil, fmt.Errorf("%s: history line %d: %w", runID, line+2, err)
		}
		step.Values = make([]float64, 0, len(record)-3)
		for _, field := range record[3:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: history line %d: %w", runID, line+2, err)
			}
			step.Values = append(step.Values, v)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// LoadStates reads back the state columns of states.csv, without controls.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	f, err := s.open(runID, statesFile)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := readCSV(f)
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	stateCols := 0
	for _, col := range records[0][1:] {
		if strings.HasPrefix(col, "x") {
			stateCols++
		}
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)
	for line, record := range records[1:] {
		if len(record) < 1+stateCols {
			return nil, nil, fmt.Errorf("%s: states line %d: %d fields", runID, line+2, len(record))
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: states line %d: %w", runID, line+2, err)
		}
		state := make([]float64, stateCols)
		for j := range state {
			if state[j], err = strconv.ParseFloat(record[1+j], 64); err != nil {
				return nil, nil, fmt.Errorf("%s: states line %d: %w", runID, line+2, err)
			}
		}
		times = append(times, t)
		states = append(states, state)
	}
	return states, times, nil
}
