// Package protocol defines the line-based command grammar shared by the
// server dispatch loop and the client REPL. Commands are single lines of the
// form "/name param1 param2 ..." with single-space separators and no quoting.
package protocol

import (
	"fmt"
	"sort"
	"strings"
)

const (
	CmdRegister    = "/register"
	CmdLogin       = "/login"
	CmdMove        = "/move"
	CmdGet         = "/get"
	CmdPlay        = "/play"
	CmdWaitingList = "/waitingList"
	CmdDisconnect  = "/disconnect"
	CmdCommands    = "/comandos"
	CmdShutdown    = "/shutdown"
	CmdSurrender   = "/surrender"
	CmdStartGame   = "/startgame"
	CmdTimeout     = "/timeout"
	CmdGetGames    = "/getgames"
)

var usage = map[string]string{
	CmdRegister:    "To register: /register nickname password nationality age",
	CmdLogin:       "To log in: /login nickname password",
	CmdMove:        "To make a move: /move row col",
	CmdGet:         "To poll a player's state: /get nickname",
	CmdPlay:        "To join the waiting queue: /play",
	CmdWaitingList: "To see the waiting list: /waitingList",
	CmdDisconnect:  "To disconnect from the server: /disconnect",
	CmdCommands:    "To list the available commands: /comandos",
	CmdShutdown:    "To shut down the server: /shutdown",
	CmdSurrender:   "To surrender your active game: /surrender",
	CmdStartGame:   "To start a game by invitation: /startgame nickname1 nickname2",
	CmdTimeout:     "To force a move-timeout check: /timeout",
	CmdGetGames:    "To list all games for a player: /getgames nickname",
}

// Command is one parsed request line. Params are keyed by position:
// "param1", "param2", ...
type Command struct {
	Name   string
	Params map[string]string
}

// Param returns the n-th positional parameter (1-based), or "" when absent.
func (c Command) Param(n int) string {
	return c.Params[fmt.Sprintf("param%d", n)]
}

// HasParams reports whether at least n positional parameters are present.
func (c Command) HasParams(n int) bool {
	for i := 1; i <= n; i++ {
		if _, ok := c.Params[fmt.Sprintf("param%d", i)]; !ok {
			return false
		}
	}
	return true
}

// IsValidCommand reports whether the first space-delimited token of line is a
// recognized command.
func IsValidCommand(line string) bool {
	name, _, _ := strings.Cut(line, " ")
	_, ok := usage[name]
	return ok
}

// ParseCommand splits line on single spaces: token 0 becomes the command
// name, tokens 1..N the positional parameters. Parameter values are not
// interpreted.
func ParseCommand(line string) Command {
	parts := strings.Split(line, " ")
	cmd := Command{Name: parts[0], Params: map[string]string{}}
	for i := 1; i < len(parts); i++ {
		cmd.Params[fmt.Sprintf("param%d", i)] = parts[i]
	}
	return cmd
}

// FormatMessage is the outgoing message hook. Currently an identity
// transform; callers must not assume escaping or truncation.
func FormatMessage(message string) string {
	return message
}

// AvailableCommands returns the usage line for every command, one per line.
func AvailableCommands() string {
	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, name := range names {
		sb.WriteString(usage[name])
		sb.WriteByte('\n')
	}
	return sb.String()
}
