package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"animat/internal/model"
)

const runIndexFile = "run_index.json"

type RunArtifacts struct {
	Run      model.RunRecord
	QTables  []model.QTableRecord
	History  map[string][]model.StatusSample
	Policies map[string][]model.PolicyRecord
}

type RunIndexEntry struct {
	RunID        string `json:"run_id"`
	Preset       string `json:"preset"`
	Scape        string `json:"scape"`
	Seed         uint64 `json:"seed"`
	Ticks        int    `json:"ticks"`
	Survivors    int    `json:"survivors"`
	Agents       int    `json:"agents"`
	CreatedAtUTC string `json:"created_at_utc"`
}

// IndexEntry summarizes a run for run_index.json.
func IndexEntry(run model.RunRecord) RunIndexEntry {
	survivors := 0
	for _, outcome := range run.Agents {
		if outcome.Viable {
			survivors++
		}
	}
	return RunIndexEntry{
		RunID:        run.ID,
		Preset:       run.Preset,
		Scape:        run.Scape,
		Seed:         run.Seed,
		Ticks:        run.Ticks,
		Survivors:    survivors,
		Agents:       len(run.Agents),
		CreatedAtUTC: run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// WriteRunArtifacts lays a run out under baseDir/<run id>: run.json,
// qtables.json, policy.json and one status_<agent>.csv per agent.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts.Run); err != nil {
		return "", err
	}
	qtables := artifacts.QTables
	if qtables == nil {
		qtables = []model.QTableRecord{}
	}
	if err := writeJSON(filepath.Join(runDir, "qtables.json"), qtables); err != nil {
		return "", err
	}
	policies := artifacts.Policies
	if policies == nil {
		policies = PoliciesFromQTables(qtables)
	}
	if err := writeJSON(filepath.Join(runDir, "policy.json"), policies); err != nil {
		return "", err
	}
	for agentID, samples := range artifacts.History {
		if err := WriteStatusHistory(filepath.Join(runDir, statusFileName(agentID)), samples); err != nil {
			return "", fmt.Errorf("status history %s: %w", agentID, err)
		}
	}

	return runDir, nil
}

func statusFileName(agentID string) string {
	return "status_" + agentID + ".csv"
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	// Later appends win ties on the second-resolution timestamp.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// ExportRunArtifacts copies a written run directory to outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".csv") {
			continue
		}
		if err := copyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRun(baseDir, runID string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "run.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

// WriteStatusHistory writes one row per tick: tick, action, viable, then a
// status_<objective> and reward_<objective> column per objective.
func WriteStatusHistory(path string, samples []model.StatusSample) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	objectives := historyObjectives(samples)
	header := []string{"tick", "action", "viable"}
	for _, name := range objectives {
		header = append(header, "status_"+name)
	}
	for _, name := range objectives {
		header = append(header, "reward_"+name)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, sample := range samples {
		row := []string{strconv.Itoa(sample.Tick), sample.Action, strconv.FormatBool(sample.Viable)}
		for _, name := range objectives {
			row = append(row, strconv.FormatFloat(sample.Status[name], 'f', -1, 64))
		}
		for _, name := range objectives {
			row = append(row, strconv.FormatFloat(sample.Reward[name], 'f', -1, 64))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadStatusHistory(path string) ([]model.StatusSample, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.StatusSample{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 3 {
		return nil, false, fmt.Errorf("status history header must have at least 3 columns")
	}

	samples := make([]model.StatusSample, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		tick, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, err
		}
		viable, err := strconv.ParseBool(record[2])
		if err != nil {
			return nil, false, err
		}
		sample := model.StatusSample{
			Tick:   tick,
			Action: record[1],
			Viable: viable,
			Status: map[string]float64{},
			Reward: map[string]float64{},
		}
		for i := 3; i < len(header) && i < len(record); i++ {
			value, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, false, err
			}
			switch {
			case strings.HasPrefix(header[i], "status_"):
				sample.Status[strings.TrimPrefix(header[i], "status_")] = value
			case strings.HasPrefix(header[i], "reward_"):
				sample.Reward[strings.TrimPrefix(header[i], "reward_")] = value
			}
		}
		samples = append(samples, sample)
	}
	return samples, true, nil
}

func historyObjectives(samples []model.StatusSample) []string {
	seen := map[string]struct{}{}
	for _, sample := range samples {
		for name := range sample.Status {
			seen[name] = struct{}{}
		}
		for name := range sample.Reward {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func ReadQTables(baseDir, runID string) ([]model.QTableRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "qtables.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var tables []model.QTableRecord
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, false, err
	}
	return tables, true, nil
}

func StatusHistoryPath(baseDir, runID, agentID string) string {
	return filepath.Join(baseDir, runID, statusFileName(agentID))
}
