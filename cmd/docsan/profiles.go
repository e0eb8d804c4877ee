package main

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/raaihank/doc-sanitizer/internal/bootstrap"
	"github.com/raaihank/doc-sanitizer/internal/policy"
	"github.com/raaihank/doc-sanitizer/internal/profile"
	"github.com/spf13/cobra"
)

// --- Profiles ---

var (
	createFrom  string
	editChanges []string
	deleteForce bool
	resetForce  bool
)

func newProfilesCmd() *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Manage sanitization profiles",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		Args:  cobra.NoArgs,
		RunE:  listProfiles,
	}

	showCmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show the configuration of a profile",
		Args:  cobra.ExactArgs(1),
		RunE:  showProfile,
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a profile from the default or another profile",
		Args:  cobra.ExactArgs(1),
		RunE:  createProfile,
	}
	createCmd.Flags().StringVar(&createFrom, "from", "", "Profile to copy the configuration from (id or name)")

	editCmd := &cobra.Command{
		Use:   "edit <id|name>",
		Short: "Change the actions of a profile",
		Long: `Change one or more category actions in a single atomic update.

Example:
  docsan profiles edit work --set email=delete --set person_name=invent`,
		Args: cobra.ExactArgs(1),
		RunE: editProfile,
	}
	editCmd.Flags().StringArrayVar(&editChanges, "set", nil, "category=action change, repeatable")

	deleteCmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteProfile,
	}
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete without asking for confirmation")

	copyCmd := &cobra.Command{
		Use:   "copy <source> <new-name>",
		Short: "Copy a profile under a new name",
		Args:  cobra.ExactArgs(2),
		RunE:  copyProfile,
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Move an unreadable profile store aside and recreate the default profile",
		Args:  cobra.NoArgs,
		RunE:  resetProfiles,
	}
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Confirm the reset")

	profilesCmd.AddCommand(listCmd, showCmd, createCmd, editCmd, deleteCmd, copyCmd, resetCmd)
	return profilesCmd
}

// withProfiles opens the profile store for the duration of fn
func withProfiles(cmd *cobra.Command, fn func(*profile.Manager) error) error {
	cfg, log, err := loadConfig(cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer log.Sync()

	backend, mgr, err := bootstrap.OpenProfiles(cfg, log)
	if err != nil {
		return err
	}
	defer profile.CloseBackend(backend)
	return fn(mgr)
}

func listProfiles(cmd *cobra.Command, args []string) error {
	return withProfiles(cmd, func(mgr *profile.Manager) error {
		profiles, err := mgr.List()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), profile.FormatTable(profiles))
		return nil
	})
}

func showProfile(cmd *cobra.Command, args []string) error {
	return withProfiles(cmd, func(mgr *profile.Manager) error {
		p, err := mgr.Get(profile.ParseRef(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), profile.FormatDetail(p))
		return nil
	})
}

func createProfile(cmd *cobra.Command, args []string) error {
	return withProfiles(cmd, func(mgr *profile.Manager) error {
		p, err := mgr.Create(args[0], profile.ParseRef(createFrom))
		if err != nil {
			return err
		}
		source := createFrom
		if source == "" {
			source = profile.DefaultName
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created profile '%s' (ID: %d) based on '%s'\n", p.Name, p.ID, source)
		return nil
	})
}

func editProfile(cmd *cobra.Command, args []string) error {
	return withProfiles(cmd, func(mgr *profile.Manager) error {
		ref := profile.ParseRef(args[0])
		before, err := mgr.Get(ref)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(editChanges) == 0 {
			fmt.Fprint(out, profile.FormatDetail(before))
			fmt.Fprintln(out, "\nNo changes given. Use --set category=action, for example --set email=delete")
			return nil
		}

		changes, err := profile.ParseChanges(editChanges)
		if err != nil {
			return err
		}
		after, err := mgr.Update(ref, changes)
		if err != nil {
			return err
		}

		categories := make([]string, 0, len(changes))
		for c := range changes {
			categories = append(categories, string(c))
		}
		sort.Strings(categories)

		fmt.Fprintf(out, "Updated profile '%s' (ID: %d)\n", after.Name, after.ID)
		for _, name := range categories {
			c := policy.Category(name)
			fmt.Fprintf(out, "  %s: %s -> %s\n", c, before.Config.Get(c).Action, after.Config.Get(c).Action)
		}
		return nil
	})
}

func deleteProfile(cmd *cobra.Command, args []string) error {
	return withProfiles(cmd, func(mgr *profile.Manager) error {
		ref := profile.ParseRef(args[0])
		p, err := mgr.Get(ref)
		if err != nil {
			return err
		}
		if p.IsDefault() {
			return profile.ErrProtectedProfile
		}

		out := cmd.OutOrStdout()
		if !deleteForce {
			fmt.Fprintf(out, "Delete profile '%s' (ID: %d)? [y/N]: ", p.Name, p.ID)
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			answer = strings.ToLower(strings.TrimSpace(answer))
			if answer != "y" && answer != "yes" {
				fmt.Fprintln(out, "Cancelled")
				return nil
			}
		}

		if err := mgr.Delete(profile.ByID(p.ID)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted profile '%s' (ID: %d)\n", p.Name, p.ID)
		return nil
	})
}

func copyProfile(cmd *cobra.Command, args []string) error {
	return withProfiles(cmd, func(mgr *profile.Manager) error {
		p, err := mgr.Copy(profile.ParseRef(args[0]), args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Copied '%s' to '%s' (ID: %d)\n", args[0], p.Name, p.ID)
		return nil
	})
}

// resetProfiles opens only the backend: the manager cannot load a corrupt store
func resetProfiles(cmd *cobra.Command, args []string) error {
	if !resetForce {
		return errors.New("refusing to reset profiles without --force")
	}

	cfg, log, err := loadConfig(cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer log.Sync()

	backend, err := profile.OpenBackend(cfg.Profiles, log)
	if err != nil {
		return err
	}
	defer profile.CloseBackend(backend)

	mgr, moved, err := profile.Reset(backend, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if moved != "" {
		fmt.Fprintf(out, "Moved unreadable profiles to %s\n", moved)
	}
	p, err := mgr.Default()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Profile store reset, default profile ID: %d\n", p.ID)
	return nil
}
