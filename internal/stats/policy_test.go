package stats

import (
	"reflect"
	"testing"

	"animat/internal/model"
)

func TestPolicyFromQTableFirstMaximumWins(t *testing.T) {
	table := sampleArtifacts("r").QTables[0]
	record := PolicyFromQTable(table)
	if record.Pi["{0}"] != "sing_eat_and_forward" || record.U["{0}"] != 0.2 {
		t.Fatalf("unexpected tie resolution: %+v", record)
	}
	if record.Pi["{}"] != "forward" || record.U["{}"] != -0.1 {
		t.Fatalf("negative-only state should still be reported: %+v", record)
	}

	grouped := PoliciesFromQTables([]model.QTableRecord{table})
	if len(grouped["mom"]) != 1 || grouped["mom"][0].Objective != "energy" {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
}

func TestSummarizeHistory(t *testing.T) {
	summaries := SummarizeHistory(sampleArtifacts("r").History["mom"])
	if len(summaries) != 1 {
		t.Fatalf("expected one objective, got %d", len(summaries))
	}
	s := summaries[0]
	if s.Initial != 0.999 || s.Final != 1.049 || s.Min != 0.999 || s.Max != 1.049 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if diff := s.Reward - 0.049; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("unexpected accumulated reward: %v", s.Reward)
	}
	if got := SummarizeHistory(nil); len(got) != 0 {
		t.Fatalf("expected empty summary, got %+v", got)
	}
}

func TestSortStatesByNodeIDs(t *testing.T) {
	states := []string{"{10}", "weird", "{2,7}", "{}", "{2}", "{7}"}
	SortStates(states)
	want := []string{"{}", "{2}", "{2,7}", "{7}", "{10}", "weird"}
	if !reflect.DeepEqual(states, want) {
		t.Fatalf("unexpected order: %v", states)
	}
}
