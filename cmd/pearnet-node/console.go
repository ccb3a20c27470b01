package main

import (
    "bufio"
    "context"
    "fmt"
    "io"
    "strings"
    "text/tabwriter"
    "time"

    "go.uber.org/zap"

    "pearnet/pkg/chatlog"
    "pearnet/pkg/core/peering"
)

// node is the slice of the overlay service the console drives.
type node interface {
    SendChat(username, text string) (int, error)
    Connect(ctx context.Context, addr string) error
    Peers() []peering.Info
}

// console is a line-oriented front-end: plain lines are chat, lines starting
// with '/' are commands.
type console struct {
    svc  node
    user string
    out  io.Writer
}

func (c *console) serve(ctx context.Context, in io.Reader) {
    sc := bufio.NewScanner(in)
    for sc.Scan() {
        if ctx.Err() != nil { return }
        if !c.handle(ctx, sc.Text()) { return }
    }
}

// handle runs one input line and reports whether the console should go on.
func (c *console) handle(ctx context.Context, line string) bool {
    line = strings.TrimSpace(line)
    if line == "" { return true }
    if !strings.HasPrefix(line, "/") {
        n, err := c.svc.SendChat(c.user, line)
        if err != nil {
            fmt.Fprintf(c.out, "send failed: %v\n", err)
        } else if n == 0 {
            fmt.Fprintln(c.out, "(no peers connected; line saved locally)")
        }
        return true
    }

    cmd, arg, _ := strings.Cut(line[1:], " ")
    arg = strings.TrimSpace(arg)
    switch strings.ToLower(cmd) {
    case "connect", "c":
        if arg == "" {
            fmt.Fprintln(c.out, "usage: /connect <host[:port]>")
            return true
        }
        dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
        defer cancel()
        if err := c.svc.Connect(dctx, arg); err != nil {
            zap.L().Debug("console connect failed", zap.String("addr", arg), zap.Error(err))
            fmt.Fprintf(c.out, "connect %s: %v\n", arg, err)
            return true
        }
        fmt.Fprintf(c.out, "connected to %s\n", arg)
    case "peers", "p":
        c.printPeers()
    case "quit", "exit", "q":
        return false
    case "help", "h":
        fmt.Fprintln(c.out, "/connect <addr>  join a peer\n/peers           list neighbors\n/quit            leave")
    default:
        fmt.Fprintf(c.out, "unknown command %q; try /help\n", cmd)
    }
    return true
}

func (c *console) printPeers() {
    ps := c.svc.Peers()
    if len(ps) == 0 {
        fmt.Fprintln(c.out, "no peers")
        return
    }
    tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
    fmt.Fprintln(tw, "ADDRESS\tADVERTISED\tKIND\tDIR\tUP\tIN\tOUT")
    for _, p := range ps {
        dir := "in"
        if p.Outbound { dir = "out" }
        fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n", p.Address, p.Advertised, p.Kind, dir,
            time.Since(p.EstablishedAt).Truncate(time.Second), p.MsgsIn, p.MsgsOut)
    }
    _ = tw.Flush()
}

// printIncoming writes received chat lines in history-file format.
func printIncoming(w io.Writer, lines <-chan chatlog.Line) {
    for l := range lines {
        _, _ = io.WriteString(w, chatlog.FormatLine(l.Username, l.Text, l.Time))
    }
}
