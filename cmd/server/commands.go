package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/tahcohcat/meechain/internal/achievements"
	"github.com/tahcohcat/meechain/internal/models"
	"github.com/tahcohcat/meechain/internal/progress"
	"github.com/tahcohcat/meechain/internal/storage"
	"github.com/tahcohcat/meechain/internal/timeline"
)

func runCatalog(out io.Writer, catalog *achievements.Catalog) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tCATEGORY\tDESCRIPTION")
	for i, d := range catalog.All() {
		fmt.Fprintf(tw, "%d\t%s\t%s %s\t%s\t%s\n", i, d.ID, d.Icon, d.Name, d.Category, d.Description)
	}
	return tw.Flush()
}

type simulateFlags struct {
	personas    int
	proposals   int
	mints       int
	miningLevel int
}

// runSimulate drives a throwaway player through the requested actions and
// reports what each one unlocked.
func runSimulate(ctx context.Context, out io.Writer, f simulateFlags) error {
	if f.personas < 0 || f.proposals < 0 || f.mints < 0 || f.miningLevel < 0 {
		return fmt.Errorf("counts must not be negative")
	}

	clock := timeline.NewManualClock(timeline.RealClock().Now())
	reg := progress.NewRegistry(storage.NewMemoryStorage(), progress.Options{Clock: clock, ChainTag: "simulation"})
	defer reg.Close(ctx)

	st, err := reg.Get(ctx, "simulated-player")
	if err != nil {
		return err
	}

	step := 0
	report := func(action string, res models.ActionResult) {
		step++
		if len(res.Unlocked) == 0 {
			return
		}
		ids := make([]string, 0, len(res.Unlocked))
		for _, u := range res.Unlocked {
			ids = append(ids, u.AchievementID)
		}
		shown := ""
		if res.Notification != nil {
			shown = res.Notification.AchievementID
		}
		fmt.Fprintf(out, "step %d %-8s unlocked %s (shown: %s)\n", step, action, strings.Join(ids, ", "), shown)
	}

	for i := 0; i < f.personas; i++ {
		report("persona", st.RecordPersonaCreated())
	}
	for i := 0; i < f.proposals; i++ {
		report("proposal", st.RecordProposalAnalyzed())
	}
	for i := 0; i < f.mints; i++ {
		report("mint", st.RecordMint())
	}
	if f.miningLevel > 0 {
		report("mining", st.SetMiningLevel(f.miningLevel))
	}

	clock.Advance(timeline.DefaultConfirmDelay)
	state := st.State()

	fmt.Fprintf(out, "progress: bots=%d proposals=%d personas=%d mining=%d\n",
		state.Progress.BotsMinted, state.Progress.ProposalsAnalyzed, state.Progress.PersonasCreated, state.Progress.MiningLevel)
	fmt.Fprintf(out, "achievements: %d/%d\n", len(state.Achievements), achievements.Default.Len())
	if len(state.Unseen) > 0 {
		fmt.Fprintf(out, "unseen: %s\n", strings.Join(state.Unseen, ", "))
	}
	fmt.Fprintf(out, "timeline: %d events confirmed\n", len(state.Timeline))
	return nil
}
