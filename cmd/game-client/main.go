package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/fatih/color"

	"gobang-server/internal/protocol"
)

var (
	serverText = color.New(color.FgCyan)
	errorText  = color.New(color.FgRed)
	promptText = color.New(color.FgGreen, color.Bold)
)

func main() {
	addr := flag.String("addr", "127.0.0.1:1234", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		errorText.Fprintf(os.Stderr, "connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			serverText.Println(scanner.Text())
		}
	}()

	promptText.Println("Connected. Type a command, or /comandos for help.")
	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}
		if !protocol.IsValidCommand(line) {
			errorText.Println("Unknown command. Type /comandos for the list.")
			continue
		}
		if _, err := fmt.Fprintln(conn, line); err != nil {
			errorText.Fprintf(os.Stderr, "send: %v\n", err)
			break
		}
		if line == protocol.CmdDisconnect || strings.HasPrefix(line, protocol.CmdDisconnect+" ") {
			break
		}
	}

	_ = conn.(*net.TCPConn).CloseWrite()
	<-done
}
