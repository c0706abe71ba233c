package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"saldi/internal/core"
	"saldi/internal/services"
	"saldi/internal/sheets"
)

// ErrInconsistent is returned by verify when any balance chain is broken.
var ErrInconsistent = errors.New("ledger is inconsistent")

// App is bound into every command run.
type App struct {
	Services *services.Set
	Out      io.Writer
}

type Commands struct {
	Accounts  AccountsCmd  `cmd:"" help:"List accounts."`
	Verify    VerifyCmd    `cmd:"" help:"Check that every snapshot balance follows from its predecessor."`
	Rebuild   RebuildCmd   `cmd:"" help:"Recompute every balance of an account from its records."`
	Snapshots SnapshotsCmd `cmd:"" help:"Show the snapshot chain of an account."`
}

type AccountsCmd struct{}

func (cmd *AccountsCmd) Run(app *App) error {
	accounts, err := app.Services.Accounts.List(context.Background())
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		printInfof(app.Out, "no accounts")
		return nil
	}
	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{a.ID, a.Name, a.CreatedAt.Format(core.DateLayout)})
	}
	renderTable(app.Out, []string{"ID", "Name", "Created"}, rows)
	return nil
}

type VerifyCmd struct {
	Account string `help:"Account id to verify; all accounts when omitted." short:"a"`
}

func (cmd *VerifyCmd) Run(app *App) error {
	ctx := context.Background()
	if cmd.Account != "" {
		if _, err := app.Services.Accounts.Get(ctx, cmd.Account); err != nil {
			return err
		}
	}

	violations, err := app.Services.Snapshots.Verify(ctx, cmd.Account)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		printSuccess(app.Out, "all balances are consistent")
		return nil
	}

	ids := make([]string, 0, len(violations))
	for id := range violations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, v := range violations[id] {
			printError(app.Out, v.String())
		}
	}
	printInfof(app.Out, "run 'saldictl rebuild --account <id>' to repair an account")
	return fmt.Errorf("%w: %d account(s) affected", ErrInconsistent, len(ids))
}

type RebuildCmd struct {
	Account string `help:"Account id to rebuild." short:"a" required:""`
}

func (cmd *RebuildCmd) Run(app *App) error {
	rewritten, err := app.Services.Records.Rebuild(context.Background(), cmd.Account)
	if err != nil {
		return err
	}
	if len(rewritten) == 0 {
		printSuccess(app.Out, "balances already consistent, nothing rewritten")
		return nil
	}
	for _, s := range rewritten {
		printInfof(app.Out, "%s balance now %s", s.Date, core.FormatAmount(s.CurrentAmount))
	}
	printSuccess(app.Out, fmt.Sprintf("rewrote %d snapshot(s)", len(rewritten)))
	return nil
}

type SnapshotsCmd struct {
	Account string `help:"Account id." short:"a" required:""`
	From    string `help:"First date (YYYY-MM-DD)."`
	To      string `help:"Last date (YYYY-MM-DD)."`
}

func (cmd *SnapshotsCmd) Run(app *App) error {
	from, err := optionalDate("from", cmd.From)
	if err != nil {
		return err
	}
	to, err := optionalDate("to", cmd.To)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := app.Services.Accounts.Get(ctx, cmd.Account); err != nil {
		return err
	}
	chain, err := app.Services.Snapshots.List(ctx, cmd.Account, from, to)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		printInfof(app.Out, "no snapshots in range")
		return nil
	}

	rows := make([][]string, 0, len(chain))
	for _, s := range chain {
		rows = append(rows, sheets.Row(s))
	}
	renderTable(app.Out, sheets.Header, rows)
	printInfof(app.Out, "%d snapshot(s)", len(chain))
	return nil
}

func optionalDate(name, value string) (*core.Date, error) {
	if value == "" {
		return nil, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return nil, core.NewValidationError(fmt.Sprintf("--%s: %v", name, err))
	}
	return &d, nil
}
