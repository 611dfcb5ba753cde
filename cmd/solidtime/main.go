package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pronicx/solidtime-cli/internal/config"
	"github.com/pronicx/solidtime-cli/internal/logger"
	"github.com/pronicx/solidtime-cli/internal/notify"
	"github.com/pronicx/solidtime-cli/internal/scheduler"
	"github.com/pronicx/solidtime-cli/internal/session"
	"github.com/pronicx/solidtime-cli/internal/solidtime"
	"github.com/pronicx/solidtime-cli/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "solidtime",
	Short: "Command-line client for the SolidTime time tracker",
	Long:  "solidtime starts, stops and inspects your active SolidTime timer and browses the organization's projects, tasks and tags.",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify the API key and select an organization",
	RunE:  runLogin,
}

var startCmd = &cobra.Command{
	Use:   "start [description...]",
	Short: "Start a new timer",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running timer",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current timer state",
	RunE:  runStatus,
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change fields of the running timer",
	RunE:  runSet,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the organization's projects",
	RunE:  runProjects,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List open tasks",
	RunE:  runTasks,
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the organization's tags",
	RunE:  runTags,
}

var tagsNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagsNew,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show intervals tracked today",
	RunE:  runHistory,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the timer state refreshed until interrupted",
	RunE:  runWatch,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open the config file in your editor",
	RunE:  runConfig,
}

func init() {
	loginCmd.Flags().String("org", "", "Organization id or name to select")

	startCmd.Flags().StringP("project", "p", "", "Project id or name")
	startCmd.Flags().StringP("task", "t", "", "Task id or name (requires --project)")
	startCmd.Flags().StringSlice("tag", nil, "Tag id or name (repeatable)")
	startCmd.Flags().Bool("billable", false, "Mark the entry billable")

	setCmd.Flags().StringP("description", "d", "", "New description")
	setCmd.Flags().StringP("project", "p", "", "Project id or name (empty clears)")
	setCmd.Flags().StringP("task", "t", "", "Task id or name (empty clears)")
	setCmd.Flags().StringSlice("tag", nil, "Replace tags (repeatable)")
	setCmd.Flags().Bool("billable", false, "Set the billable flag")

	tasksCmd.Flags().StringP("project", "p", "", "Only tasks of this project")

	tagsCmd.AddCommand(tagsNewCmd)

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.API.Key == "" {
		return nil, fmt.Errorf("solidtime API key not configured — run 'solidtime config' or set SOLIDTIME_API_KEY")
	}
	return cfg, nil
}

func buildSession(cfg *config.Config) (*session.Session, *slog.Logger, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(dir, cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}
	notifier := notify.NewDesktop(true, log)
	client := solidtime.NewClient(cfg.API.Key, cfg.API.BaseURL, notifier, log)
	return session.New(client, cfg, log), log, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	orgRef, _ := cmd.Flags().GetString("org")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, _, err := buildSession(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	user, err := sess.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Authenticated as %s <%s>\n", user.Name, user.Email)

	memberships, err := sess.Client().GetMemberships(ctx)
	if err != nil {
		return err
	}
	if len(memberships) == 0 {
		return fmt.Errorf("user belongs to no organization")
	}

	var selected *solidtime.Membership
	switch {
	case orgRef != "":
		for i := range memberships {
			org := memberships[i].Organization
			if org.ID == orgRef || strings.EqualFold(org.Name, orgRef) {
				selected = &memberships[i]
				break
			}
		}
		if selected == nil {
			return fmt.Errorf("no membership matches %q", orgRef)
		}
	case len(memberships) == 1:
		selected = &memberships[0]
	default:
		fmt.Println("Multiple organizations found, pass --org:")
		for _, m := range memberships {
			fmt.Printf("  %s  %s\n", m.Organization.ID, m.Organization.Name)
		}
		return fmt.Errorf("organization not selected")
	}

	cfg.Organization.ID = selected.Organization.ID
	cfg.Organization.MemberID = selected.ID
	if err := config.SaveSelection(selected.Organization.ID, selected.ID); err != nil {
		return fmt.Errorf("saving selection: %w", err)
	}

	fmt.Printf("Selected organization %s (%s)\n", selected.Organization.Name, selected.Organization.ID)
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, _, err := buildSession(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	projectRef, _ := cmd.Flags().GetString("project")
	taskRef, _ := cmd.Flags().GetString("task")
	tagRefs, _ := cmd.Flags().GetStringSlice("tag")

	projectID, taskID, tagIDs, err := resolveRefs(ctx, sess, projectRef, taskRef, tagRefs)
	if err != nil {
		return err
	}

	opts := session.StartOptions{
		Description: strings.Join(args, " "),
		ProjectID:   projectID,
		TaskID:      taskID,
		Tags:        tagIDs,
	}
	if cmd.Flags().Changed("billable") {
		billable, _ := cmd.Flags().GetBool("billable")
		opts.Billable = &billable
	}

	entry, err := sess.Start(ctx, opts)
	if err != nil {
		return err
	}

	desc := "untitled"
	if entry.Description != nil && *entry.Description != "" {
		desc = *entry.Description
	}
	fmt.Printf("%s %s\n", runningStyle.Render("Started:"), desc)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, log, err := buildSession(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if err := sess.Refresh(ctx); err != nil {
		return err
	}

	entry, err := sess.Stop(ctx)
	if err != nil {
		return err
	}

	start := parseWire(entry.Start)
	end := time.Now()
	if entry.End != nil {
		end = parseWire(*entry.End)
	}
	fmt.Printf("Stopped after %s\n", elapsedStyle.Render(formatElapsed(end.Sub(start))))

	recordInterval(ctx, sess, log, entry, start, end)
	return nil
}

// recordInterval appends the finished interval to the local history
// log. History is best effort; a failure here never fails the stop.
func recordInterval(ctx context.Context, sess *session.Session, log *slog.Logger, entry *solidtime.TimeEntry, start, end time.Time) {
	dir, err := config.ConfigDir()
	if err != nil {
		log.Warn("history not recorded", "error", err)
		return
	}
	db, err := store.Open(dir)
	if err != nil {
		log.Warn("history not recorded", "error", err)
		return
	}
	defer db.Close()

	iv := store.Interval{
		EntryID:   entry.ID,
		StartTime: start,
		EndTime:   end,
		Billable:  entry.Billable,
	}
	if entry.Description != nil {
		iv.Description = *entry.Description
	}
	if entry.ProjectID != nil {
		iv.ProjectID = *entry.ProjectID
		if sess.Catalog().FetchedAt().IsZero() {
			if err := sess.RefreshCatalog(ctx); err != nil {
				log.Debug("catalog refresh for history failed", "error", err)
			}
		}
		if p := sess.Catalog().ProjectByID(*entry.ProjectID); p != nil {
			iv.ProjectName = p.Name
		}
	}
	if _, err := db.InsertInterval(&iv); err != nil {
		log.Warn("history not recorded", "error", err)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, _, err := buildSession(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	refreshErr := sess.Refresh(ctx)

	switch sess.State() {
	case session.StateAuthError:
		fmt.Println(errorStyle.Render("Authentication error — check your API key."))
		return refreshErr
	case session.StateRunning:
		entry := sess.Active()
		desc := "untitled"
		if entry.Description != nil && *entry.Description != "" {
			desc = *entry.Description
		}

		line := runningStyle.Render("Tracking:") + " " + desc
		if entry.ProjectID != nil {
			if err := sess.RefreshCatalog(ctx); err == nil {
				if p := sess.Catalog().ProjectByID(*entry.ProjectID); p != nil {
					line += "  " + projectChip(p.Color) + " " + p.Name
				}
			}
		}
		fmt.Println(line)

		if elapsed, ok := sess.Elapsed(); ok {
			fmt.Printf("Elapsed: %s\n", elapsedStyle.Render(formatElapsed(elapsed)))
		}
		if entry.Billable {
			fmt.Println(dimStyle.Render("billable"))
		}
		return nil
	default:
		fmt.Println(idleStyle.Render("No timer running."))
		return refreshErr
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, _, err := buildSession(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if err := sess.Refresh(ctx); err != nil {
		return err
	}

	var opts session.UpdateOptions

	if cmd.Flags().Changed("description") {
		desc, _ := cmd.Flags().GetString("description")
		opts.Description = &desc
	}
	if cmd.Flags().Changed("project") {
		ref, _ := cmd.Flags().GetString("project")
		projectID := ""
		if ref != "" {
			id, _, _, err := resolveRefs(ctx, sess, ref, "", nil)
			if err != nil {
				return err
			}
			projectID = id
		}
		opts.ProjectID = &projectID
	}
	if cmd.Flags().Changed("task") {
		ref, _ := cmd.Flags().GetString("task")
		taskID := ""
		if ref != "" {
			projectID := ""
			if opts.ProjectID != nil {
				projectID = *opts.ProjectID
			} else if active := sess.Active(); active != nil && active.ProjectID != nil {
				projectID = *active.ProjectID
			}
			if projectID == "" {
				return fmt.Errorf("a task needs a project: pass --project too")
			}
			_, id, _, err := resolveRefs(ctx, sess, projectID, ref, nil)
			if err != nil {
				return err
			}
			taskID = id
		}
		opts.TaskID = &taskID
	}
	if cmd.Flags().Changed("tag") {
		refs, _ := cmd.Flags().GetStringSlice("tag")
		_, _, tagIDs, err := resolveRefs(ctx, sess, "", "", refs)
		if err != nil {
			return err
		}
		if tagIDs == nil {
			tagIDs = []string{}
		}
		opts.Tags = tagIDs
	}
	if cmd.Flags().Changed("billable") {
		billable, _ := cmd.Flags().GetBool("billable")
		opts.Billable = &billable
	}

	if _, err := sess.Update(ctx, opts); err != nil {
		return err
	}
	fmt.Println("Updated.")
	return nil
}

func runProjects(cmd *cobra.Command, args []string) error {
	sess, ctx, err := sessionForListing(cmd)
	if err != nil {
		return err
	}
	if err := sess.RefreshCatalog(ctx); err != nil {
		return err
	}

	projects := sess.Catalog().Projects()
	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	fmt.Printf("Found %d projects:\n\n", len(projects))
	for _, p := range projects {
		billable := ""
		if p.IsBillable {
			billable = dimStyle.Render("  billable")
		}
		fmt.Printf("  %s %s  %s%s\n", projectChip(p.Color), p.ID, p.Name, billable)
	}
	return nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	sess, ctx, err := sessionForListing(cmd)
	if err != nil {
		return err
	}
	if err := sess.RefreshCatalog(ctx); err != nil {
		return err
	}

	projectID := ""
	if ref, _ := cmd.Flags().GetString("project"); ref != "" {
		p := sess.Catalog().ProjectByRef(ref)
		if p == nil {
			return fmt.Errorf("unknown project %q", ref)
		}
		projectID = p.ID
	}

	tasks := sess.Catalog().Tasks(projectID)
	if len(tasks) == 0 {
		fmt.Println("No open tasks found.")
		return nil
	}

	fmt.Printf("Found %d tasks:\n\n", len(tasks))
	for _, t := range tasks {
		project := ""
		if p := sess.Catalog().ProjectByID(t.ProjectID); p != nil {
			project = dimStyle.Render("  " + p.Name)
		}
		fmt.Printf("  %s  %s%s\n", t.ID, t.Name, project)
	}
	return nil
}

func runTags(cmd *cobra.Command, args []string) error {
	sess, ctx, err := sessionForListing(cmd)
	if err != nil {
		return err
	}
	if err := sess.RefreshCatalog(ctx); err != nil {
		return err
	}

	tags := sess.Catalog().Tags()
	if len(tags) == 0 {
		fmt.Println("No tags found.")
		return nil
	}

	for _, t := range tags {
		fmt.Printf("  %s  %s\n", t.ID, t.Name)
	}
	return nil
}

func runTagsNew(cmd *cobra.Command, args []string) error {
	sess, ctx, err := sessionForListing(cmd)
	if err != nil {
		return err
	}
	if err := sess.RefreshCatalog(ctx); err != nil {
		return err
	}

	tag, err := sess.CreateTag(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Created tag %s (%s)\n", tag.Name, tag.ID)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	db, err := store.Open(dir)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer db.Close()

	intervals, err := db.TodayIntervals()
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(intervals) == 0 {
		fmt.Println("Nothing tracked today.")
		return nil
	}

	totalMinutes := 0
	fmt.Println("Tracked today:")
	fmt.Println()
	for _, iv := range intervals {
		fmt.Printf("  %s–%s  %dmin  %-20s  %s\n",
			iv.StartTime.Local().Format("15:04"),
			iv.EndTime.Local().Format("15:04"),
			iv.Minutes(),
			iv.ProjectName,
			iv.Description,
		)
		totalMinutes += iv.Minutes()
	}

	fmt.Printf("\nTotal: %dh %dmin (%d intervals)\n", totalMinutes/60, totalMinutes%60, len(intervals))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, log, err := buildSession(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess.OnChange(func() {
		state := sess.State()
		if state == session.StateRunning {
			if entry := sess.Active(); entry != nil && entry.Description != nil {
				log.Info("timer state changed", "state", state.String(), "description", *entry.Description)
				return
			}
		}
		log.Info("timer state changed", "state", state.String())
	})

	if err := sess.Refresh(ctx); err != nil {
		log.Warn("initial refresh failed", "error", err)
	}
	if err := sess.RefreshCatalog(ctx); err != nil {
		log.Warn("initial catalog refresh failed", "error", err)
	}

	active := time.Duration(cfg.Refresh.ActiveSeconds) * time.Second
	catalog := time.Duration(cfg.Refresh.CatalogSeconds) * time.Second
	fmt.Printf("Watching (entry every %s, catalog every %s). Ctrl-C to stop.\n", active, catalog)

	scheduler.New(sess, log).Run(ctx, active, catalog)
	fmt.Println("\nStopped watching.")
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data := fmt.Sprintf(`[api]
key = "%s"
base_url = "%s"

[organization]
id = ""
member_id = ""

[defaults]
billable = false

[refresh]
active_seconds = %d
catalog_seconds = %d

[log]
debug = false
`,
			cfg.API.Key,
			cfg.API.BaseURL,
			cfg.Refresh.ActiveSeconds,
			cfg.Refresh.CatalogSeconds,
		)
		if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	if err := openEditor(cmd.Context(), editor, configPath); err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
	}
	return nil
}

// openEditor runs the editor attached to the terminal, resolving it
// through PATH.
func openEditor(ctx context.Context, editor, path string) error {
	editorCmd := exec.CommandContext(ctx, editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	return editorCmd.Run()
}

func sessionForListing(cmd *cobra.Command) (*session.Session, context.Context, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	sess, _, err := buildSession(cfg)
	if err != nil {
		return nil, nil, err
	}
	return sess, cmd.Context(), nil
}

// resolveRefs maps user-supplied project/task/tag references (names or
// ids) to ids via the catalog, refreshing it first when empty.
func resolveRefs(ctx context.Context, sess *session.Session, projectRef, taskRef string, tagRefs []string) (string, string, []string, error) {
	if projectRef == "" && taskRef == "" && len(tagRefs) == 0 {
		return "", "", nil, nil
	}
	if sess.Catalog().FetchedAt().IsZero() {
		if err := sess.RefreshCatalog(ctx); err != nil {
			return "", "", nil, err
		}
	}

	projectID := ""
	if projectRef != "" {
		p := sess.Catalog().ProjectByRef(projectRef)
		if p == nil {
			return "", "", nil, fmt.Errorf("unknown project %q", projectRef)
		}
		projectID = p.ID
	}

	taskID := ""
	if taskRef != "" {
		if projectID == "" {
			return "", "", nil, fmt.Errorf("a task needs a project: pass --project too")
		}
		t := sess.Catalog().TaskByRef(projectID, taskRef)
		if t == nil {
			return "", "", nil, fmt.Errorf("unknown task %q in project %q", taskRef, projectRef)
		}
		taskID = t.ID
	}

	var tagIDs []string
	for _, ref := range tagRefs {
		t := sess.Catalog().TagByRef(ref)
		if t == nil {
			return "", "", nil, fmt.Errorf("unknown tag %q — create it with 'solidtime tags new %s'", ref, ref)
		}
		tagIDs = append(tagIDs, t.ID)
	}

	return projectID, taskID, tagIDs, nil
}

func parseWire(s string) time.Time {
	if t, err := time.Parse(solidtime.TimeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
