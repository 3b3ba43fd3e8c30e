package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/example/scan-attendance/internal/application"
	"github.com/example/scan-attendance/internal/sampledata"
)

// action runs a parsed command and returns the value printed as JSON.
type action func(ctx context.Context, a *app) (any, error)

type command struct {
	name    string
	summary string
	// bind registers the command flags and returns the action reading them.
	bind func(fs *flag.FlagSet) action
}

var commands = []command{
	{name: "seed", summary: "load the sample roster", bind: bindSeed},
	{name: "person-add", summary: "create a person", bind: bindPersonAdd},
	{name: "person-list", summary: "list persons", bind: bindPersonList},
	{name: "person-update", summary: "rename a person", bind: bindPersonUpdate},
	{name: "session-add", summary: "create a session", bind: bindSessionAdd},
	{name: "session-list", summary: "list sessions", bind: bindSessionList},
	{name: "session-update", summary: "change the name, owner or rules of a session", bind: bindSessionUpdate},
	{name: "enroll", summary: "enroll a person in a session", bind: bindEnroll},
	{name: "assign-token", summary: "assign a scanner token to a person", bind: bindAssignToken},
	{name: "clear-token", summary: "remove the scanner token of a person", bind: bindClearToken},
	{name: "delete-person", summary: "delete a person and their enrollments", bind: bindDeletePerson},
	{name: "delete-session", summary: "delete a session and its enrollments", bind: bindDeleteSession},
	{name: "record", summary: "record attendance from a scanner token", bind: bindRecord},
	{name: "manual", summary: "record attendance for an explicit session", bind: bindManual},
	{name: "resolve", summary: "show the session a person would be recorded in", bind: bindResolve},
	{name: "report", summary: "daily attendance report of a session", bind: bindReport},
	{name: "summary", summary: "attendance summary of a person", bind: bindSummary},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func (a *app) dispatch(ctx context.Context, name string, args []string, stdout, stderr io.Writer) int {
	c, ok := lookupCommand(name)
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		return exitInvalidInput
	}

	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	act := c.bind(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitInvalidInput
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return exitInvalidInput
	}

	result, err := act(ctx, a)
	if err != nil {
		_ = writeJSON(stderr, toErrorResponse(err))
		return exitCode(err)
	}
	if result != nil {
		if err := writeJSON(stdout, result); err != nil {
			a.logger.Error("failed to write output", "error", err)
			return exitStartup
		}
	}
	return exitOK
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// optional returns nil for an unset flag value.
func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// required reports every empty flag as a validation error.
func required(flags map[string]string) error {
	fieldErrors := make(map[string]string)
	for name, value := range flags {
		if strings.TrimSpace(value) == "" {
			fieldErrors[name] = fmt.Sprintf("-%s is required", name)
		}
	}
	if len(fieldErrors) > 0 {
		return &application.ValidationError{FieldErrors: fieldErrors}
	}
	return nil
}

func bindSeed(fs *flag.FlagSet) action {
	return func(ctx context.Context, a *app) (any, error) {
		if err := sampledata.Load(ctx, a.roster); err != nil {
			return nil, err
		}
		persons, err := a.roster.ListPersons(ctx)
		if err != nil {
			return nil, err
		}
		return toPersonDTOs(persons), nil
	}
}

func bindPersonAdd(fs *flag.FlagSet) action {
	id := fs.String("id", "", "person id, generated when empty")
	name := fs.String("name", "", "display name")
	token := fs.String("token", "", "scanner token")
	return func(ctx context.Context, a *app) (any, error) {
		person, err := a.roster.CreatePerson(ctx, application.CreatePersonInput{
			ID:          *id,
			DisplayName: *name,
			Token:       optional(*token),
		})
		if err != nil {
			return nil, err
		}
		return toPersonDTO(person), nil
	}
}

func bindPersonList(fs *flag.FlagSet) action {
	return func(ctx context.Context, a *app) (any, error) {
		persons, err := a.roster.ListPersons(ctx)
		if err != nil {
			return nil, err
		}
		return toPersonDTOs(persons), nil
	}
}

func bindPersonUpdate(fs *flag.FlagSet) action {
	id := fs.String("id", "", "person id")
	name := fs.String("name", "", "new display name")
	return func(ctx context.Context, a *app) (any, error) {
		if err := required(map[string]string{"id": *id}); err != nil {
			return nil, err
		}
		person, err := a.roster.RenamePerson(ctx, *id, *name)
		if err != nil {
			return nil, err
		}
		return toPersonDTO(person), nil
	}
}

func bindSessionAdd(fs *flag.FlagSet) action {
	id := fs.String("id", "", "session id, generated when empty")
	name := fs.String("name", "", "session name")
	owner := fs.String("owner", "", "owner, such as the instructor")
	var rules ruleList
	fs.Var(&rules, "rule", `weekly window "Monday 09:00-11:00 [location]", repeatable`)
	return func(ctx context.Context, a *app) (any, error) {
		session, err := a.roster.CreateSession(ctx, application.CreateSessionInput{
			ID:    *id,
			Name:  *name,
			Owner: *owner,
			Rules: rules,
		})
		if err != nil {
			return nil, err
		}
		return toSessionDTO(session), nil
	}
}

func bindSessionUpdate(fs *flag.FlagSet) action {
	id := fs.String("id", "", "session id")
	name := fs.String("name", "", "new session name")
	owner := fs.String("owner", "", "new owner")
	clearRules := fs.Bool("clear-rules", false, "remove every rule")
	var rules ruleList
	fs.Var(&rules, "rule", `replacement weekly window "Monday 09:00-11:00 [location]", repeatable`)
	return func(ctx context.Context, a *app) (any, error) {
		if err := required(map[string]string{"id": *id}); err != nil {
			return nil, err
		}
		if *clearRules && len(rules) > 0 {
			return nil, &application.ValidationError{FieldErrors: map[string]string{"rule": "-rule and -clear-rules are exclusive"}}
		}

		var input application.UpdateSessionInput
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				input.Name = name
			case "owner":
				input.Owner = owner
			}
		})
		switch {
		case *clearRules:
			input.Rules = []application.RecurrenceRule{}
		case len(rules) > 0:
			input.Rules = rules
		}

		session, err := a.roster.UpdateSession(ctx, *id, input)
		if err != nil {
			return nil, err
		}
		return toSessionDTO(session), nil
	}
}

func bindSessionList(fs *flag.FlagSet) action {
	return func(ctx context.Context, a *app) (any, error) {
		sessions, err := a.roster.ListSessions(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]sessionDTO, 0, len(sessions))
		for _, session := range sessions {
			out = append(out, toSessionDTO(session))
		}
		return out, nil
	}
}

func bindEnroll(fs *flag.FlagSet) action {
	personID := fs.String("person", "", "person id")
	sessionID := fs.String("session", "", "session id")
	return func(ctx context.Context, a *app) (any, error) {
		if err := required(map[string]string{"person": *personID, "session": *sessionID}); err != nil {
			return nil, err
		}
		if err := a.roster.Enroll(ctx, *personID, *sessionID); err != nil {
			return nil, err
		}
		person, err := a.roster.GetPerson(ctx, *personID)
		if err != nil {
			return nil, err
		}
		return toPersonDTO(person), nil
	}
}

func bindAssignToken(fs *flag.FlagSet) action {
	personID := fs.String("person", "", "person id")
	token := fs.String("token", "", "scanner token")
	return func(ctx context.Context, a *app) (any, error) {
		if err := required(map[string]string{"person": *personID, "token": *token}); err != nil {
			return nil, err
		}
		person, err := a.roster.AssignToken(ctx, *personID, *token)
		if err != nil {
			return nil, err
		}
		return toPersonDTO(person), nil
	}
}

func bindClearToken(fs *flag.FlagSet) action {
	personID := fs.String("person", "", "person id")
	return func(ctx context.Context, a *app) (any, error) {
		if err := required(map[string]string{"person": *personID}); err != nil {
			return nil, err
		}
		person, err := a.roster.ClearToken(ctx, *personID)
		if err != nil {
			return nil, err
		}
		return toPersonDTO(person), nil
	}
}

func bindDeletePerson(fs *flag.FlagSet) action {
	id := fs.String("id", "", "person id")
	return func(ctx context.Context, a *app) (any, error) {
		if err := required(map[string]string{"id": *id}); err != nil {
			return nil, err
		}
		if err := a.roster.DeletePerson(ctx, *id); err != nil {
			return nil, err
		}
		return deletedDTO{ID: *id}, nil
	}
}

func bindDeleteSession(fs *flag.FlagSet) action {
	id := fs.String("id", "", "session id")
	return func(ctx context.Context, a *app) (any, error) {
		if err := required(map[string]string{"id": *id}); err != nil {
			return nil, err
		}
		if err := a.roster.DeleteSession(ctx, *id); err != nil {
			return nil, err
		}
		return deletedDTO{ID: *id}, nil
	}
}

func bindRecord(fs *flag.FlagSet) action {
	token := fs.String("token", "", "scanner token")
	at := fs.String("at", "", `scan time "YYYY-MM-DD HH:MM:SS", now when empty`)
	return func(ctx context.Context, a *app) (any, error) {
		confirmation, err := a.recorder.Record(ctx, application.RecordParams{
			Token:     *token,
			Timestamp: optional(*at),
		})
		if err != nil {
			return nil, err
		}
		return toConfirmationDTO(confirmation), nil
	}
}

func bindManual(fs *flag.FlagSet) action {
	personID := fs.String("person", "", "person id")
	sessionID := fs.String("session", "", "session id")
	at := fs.String("at", "", `attendance time "YYYY-MM-DD HH:MM:SS", now when empty`)
	return func(ctx context.Context, a *app) (any, error) {
		confirmation, err := a.recorder.RecordManual(ctx, application.ManualParams{
			PersonID:  *personID,
			SessionID: *sessionID,
			Timestamp: optional(*at),
		})
		if err != nil {
			return nil, err
		}
		return toConfirmationDTO(confirmation), nil
	}
}

func bindResolve(fs *flag.FlagSet) action {
	personID := fs.String("person", "", "person id")
	at := fs.String("at", "", `moment "YYYY-MM-DD HH:MM:SS", now when empty`)
	return func(ctx context.Context, a *app) (any, error) {
		resolution, err := a.resolver.ResolveForPerson(ctx, *personID, *at)
		if err != nil {
			return nil, err
		}
		return toResolutionDTO(resolution), nil
	}
}

func bindReport(fs *flag.FlagSet) action {
	sessionID := fs.String("session", "", "session id")
	date := fs.String("date", "", `report date "YYYY-MM-DD"`)
	return func(ctx context.Context, a *app) (any, error) {
		report, err := a.aggregator.Report(ctx, *sessionID, *date)
		if err != nil {
			return nil, err
		}
		return toReportDTO(report), nil
	}
}

func bindSummary(fs *flag.FlagSet) action {
	personID := fs.String("person", "", "person id")
	return func(ctx context.Context, a *app) (any, error) {
		summary, err := a.aggregator.Summary(ctx, *personID)
		if err != nil {
			return nil, err
		}
		return toSummaryDTO(summary), nil
	}
}

// ruleList collects repeated -rule flags.
type ruleList []application.RecurrenceRule

func (r *ruleList) String() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(*r))
	for _, rule := range *r {
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("%s %s-%s %s", rule.Day, rule.Start, rule.End, rule.Location)))
	}
	return strings.Join(parts, ", ")
}

func (r *ruleList) Set(value string) error {
	rule, err := parseRuleFlag(value)
	if err != nil {
		return err
	}
	*r = append(*r, rule)
	return nil
}

// parseRuleFlag reads "Day HH:MM-HH:MM [location]". The location may contain spaces.
// Day and time values are checked by the roster when the session is created.
func parseRuleFlag(value string) (application.RecurrenceRule, error) {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return application.RecurrenceRule{}, fmt.Errorf("rule %q: want \"Day HH:MM-HH:MM [location]\"", value)
	}
	start, end, ok := strings.Cut(fields[1], "-")
	if !ok || start == "" || end == "" {
		return application.RecurrenceRule{}, fmt.Errorf("rule %q: window must be HH:MM-HH:MM", value)
	}
	return application.RecurrenceRule{
		Day:      fields[0],
		Start:    start,
		End:      end,
		Location: strings.Join(fields[2:], " "),
	}, nil
}
