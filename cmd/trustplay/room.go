package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepesh-sr/Trustplay/internal/amount"
	"github.com/deepesh-sr/Trustplay/internal/client"
	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/ui"
)

var roomCmd = &cobra.Command{
	Use:     "room",
	Short:   "Create, inspect and move rooms through their lifecycle",
	GroupID: "rooms",
}

var roomCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a room and its vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, _ := cmd.Flags().GetString("id")
		pool, _ := cmd.Flags().GetString("pool")
		threshold, _ := cmd.Flags().GetUint8("threshold")
		deadline, _ := cmd.Flags().GetString("deadline")

		req := &client.CreateRoomRequest{RoomID: roomID, Name: args[0], VoteThreshold: threshold}
		if pool != "" {
			units, err := amount.Parse(pool)
			if err != nil {
				return fmt.Errorf("--pool: %w", err)
			}
			req.TotalPool = units
		}
		if deadline != "" {
			at, err := parseDeadline(deadline, time.Now())
			if err != nil {
				return err
			}
			req.Deadline = &at
		}

		res, err := tpClient.CreateRoom(cmd.Context(), req)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), res, func(w io.Writer) {
			fmt.Fprintf(w, "%s room %s\n", ui.RenderSuccess("Created"), ui.RenderAccent(res.Room.Address))
			printRoom(w, res.Room)
			fmt.Fprintf(w, "Reserve:     %s\n", tokens(res.Vault.Reserve))
		})
	},
}

var roomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		organizer, _ := cmd.Flags().GetString("organizer")
		status, _ := cmd.Flags().GetStringSlice("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		resp, err := tpClient.ListRooms(cmd.Context(), &client.ListRoomsRequest{
			Organizer: organizer, Status: status, Limit: limit, Offset: offset,
		})
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), resp, func(w io.Writer) {
			printRoomList(w, resp.Rooms, resp.Total)
		})
	},
}

var roomShowCmd = &cobra.Command{
	Use:   "show <room>",
	Short: "Show a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := tpClient.GetRoom(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), room, func(w io.Writer) { printRoom(w, room) })
	},
}

// roomTransitionCmd builds start and cancel, which share a shape.
func roomTransitionCmd(use, short, verb string, call func(cmd *cobra.Command, room string) (*model.Room, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <room>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := call(cmd, args[0])
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), room, func(w io.Writer) {
				fmt.Fprintf(w, "%s room %s (%s)\n", ui.RenderSuccess(verb), room.Address, ui.RenderRoomStatus(room.Status))
			})
		},
	}
}

var roomStartCmd = roomTransitionCmd("start", "Move an open room to in_progress (organizer only)", "Started",
	func(cmd *cobra.Command, room string) (*model.Room, error) { return tpClient.StartRoom(cmd.Context(), room) })

var roomCancelCmd = roomTransitionCmd("cancel", "Cancel a room (organizer only)", "Cancelled",
	func(cmd *cobra.Command, room string) (*model.Room, error) { return tpClient.CancelRoom(cmd.Context(), room) })

var roomJoinCmd = &cobra.Command{
	Use:   "join <room>",
	Short: "Join a room as the current identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := tpClient.JoinRoom(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), p, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s joined %s\n", ui.RenderSuccess("Joined"), p.Player, p.Room)
		})
	},
}

var roomParticipantsCmd = &cobra.Command{
	Use:   "participants <room>",
	Short: "List the players in a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ps, err := tpClient.ListParticipants(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), ps, func(w io.Writer) { printParticipants(w, ps) })
	},
}

// parseDeadline accepts RFC 3339 or a duration from now such as "72h".
func parseDeadline(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("--deadline %q must be in the future", s)
		}
		return now.Add(d).UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("--deadline %q: want RFC 3339 or a duration like 72h", s)
	}
	return at.UTC(), nil
}

func init() {
	roomCreateCmd.Flags().String("id", "", "room id, unique per organizer (generated if empty)")
	roomCreateCmd.Flags().String("pool", "", "advertised total pool in tokens, e.g. 1.5")
	roomCreateCmd.Flags().Uint8("threshold", 50, "percent of votes needed to accept a claim (0-100)")
	roomCreateCmd.Flags().String("deadline", "", "deadline as RFC 3339 or a duration from now")

	roomListCmd.Flags().String("organizer", "", "only rooms created by this identity")
	roomListCmd.Flags().StringSlice("status", nil, "filter by status (open, in_progress, resolved, cancelled)")
	roomListCmd.Flags().Int("limit", 50, "maximum rooms to return")
	roomListCmd.Flags().Int("offset", 0, "rooms to skip")

	roomCmd.AddCommand(roomCreateCmd)
	roomCmd.AddCommand(roomListCmd)
	roomCmd.AddCommand(roomShowCmd)
	roomCmd.AddCommand(roomStartCmd)
	roomCmd.AddCommand(roomCancelCmd)
	roomCmd.AddCommand(roomJoinCmd)
	roomCmd.AddCommand(roomParticipantsCmd)
}
