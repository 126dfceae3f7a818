package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"studygroup-service/internal/chatclient"
)

func init() {
	rootCmd.AddCommand(registerCmd, groupsCmd, joinCmd, suggestCmd, chatCmd)
	chatCmd.Flags().Bool("join", false, "join the group before opening it")
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account with --user and --password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tr := chatclient.NewHTTPTransport(serverURL, timeout)
		id, err := tr.Register(cmd.Context(), username, password)
		if err != nil {
			return err
		}
		fmt.Printf("registered %s (%s)\n", username, id)
		return nil
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List every study group",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tr := chatclient.NewHTTPTransport(serverURL, timeout)
		groups, err := tr.ListGroups(cmd.Context())
		if err != nil {
			return err
		}
		for _, g := range groups {
			fmt.Printf("%s  %s  admin=%s  members=%s\n",
				metaStyle.Render(g.ID), nameStyle.Render(g.GroupName), g.Admin, strings.Join(g.Members, ","))
		}
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join [group-id]",
	Short: "Join a study group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := login(cmd.Context())
		if err != nil {
			return err
		}
		g, err := tr.JoinGroup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("joined %s (%d members)\n", g.GroupName, len(g.Members))
		return nil
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask for study partner and group suggestions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tr, err := login(cmd.Context())
		if err != nil {
			return err
		}
		out, err := tr.Suggestions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(nameStyle.Render("Students"))
		for _, s := range out.MatchedStudents {
			fmt.Printf("  %s: %s\n", s.Username, s.Reasoning)
		}
		fmt.Println(nameStyle.Render("Groups"))
		for _, g := range out.MatchedGroups {
			fmt.Printf("  %s: %s\n", g.GroupName, g.Reasoning)
		}
		fmt.Println(nameStyle.Render("Resources"))
		if out.OnlineResources.Summary != "" {
			fmt.Println("  " + out.OnlineResources.Summary)
		}
		for _, r := range out.OnlineResources.Resources {
			fmt.Printf("  [%s] %s %s\n", r.Category, r.Title, metaStyle.Render(r.URL))
		}
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [group-id]",
	Short: "Open an interactive chat in a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := login(cmd.Context())
		if err != nil {
			return err
		}
		if join, _ := cmd.Flags().GetBool("join"); join {
			if _, err := tr.JoinGroup(cmd.Context(), args[0]); err != nil {
				return err
			}
		}
		return runChat(cmd.Context(), tr, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
	},
}
