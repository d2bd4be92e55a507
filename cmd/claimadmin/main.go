package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"regionhooks.ai/internal/claimstore"
	"regionhooks.ai/internal/config"
	"regionhooks.ai/internal/geom"
	"regionhooks.ai/internal/persistence/auditlog"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: claimadmin <create|list|delete|rename|resize|trust|untrust|land|audit> [flags]", errUsage)
	}
	switch args[0] {
	case "create":
		return createCmd(args[1:], out)
	case "list":
		return listCmd(args[1:], out)
	case "delete":
		return deleteCmd(args[1:], out)
	case "rename":
		return renameCmd(args[1:], out)
	case "resize":
		return resizeCmd(args[1:], out)
	case "trust":
		return trustCmd(args[1:], out, true)
	case "untrust":
		return trustCmd(args[1:], out, false)
	case "land":
		return landCmd(args[1:], out)
	case "audit":
		return auditCmd(args[1:], out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

type common struct {
	dbPath     *string
	configPath *string
	auditDir   *string
	actor      *string
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		dbPath:     fs.String("db", "./data/claims.db", "claims sqlite path"),
		configPath: fs.String("config", "./configs/regions.yaml", "regions config path (for world names)"),
		auditDir:   fs.String("audit", "./data/audit", "audit log directory (empty to disable)"),
		actor:      fs.String("actor", "admin", "name recorded in the audit log"),
	}
}

// record appends an audit entry. The mutation already happened, so a failed
// write is reported without failing the command.
func (c common) record(action, kind string, id uuid.UUID, detail map[string]any) {
	dir := strings.TrimSpace(*c.auditDir)
	if dir == "" {
		return
	}
	w := auditlog.NewWriter(dir, "audit")
	defer w.Close()
	if err := w.Record(auditlog.Entry{Actor: *c.actor, Action: action, Kind: kind, ID: id.String(), Detail: detail}); err != nil {
		fmt.Fprintln(os.Stderr, "audit:", err)
	}
}

func (c common) open() (*claimstore.Store, error) {
	return claimstore.Open(*c.dbPath)
}

// world accepts a world uuid or a world name from the config.
func (c common) world(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: missing -world", errUsage)
	}
	if id, err := uuid.Parse(s); err == nil {
		return id, nil
	}
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return uuid.Nil, err
	}
	for name, id := range cfg.WorldIDs() {
		if strings.EqualFold(name, s) {
			return id, nil
		}
	}
	return uuid.Nil, fmt.Errorf("unknown world %q", s)
}

func createCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	c := commonFlags(fs)
	name := fs.String("name", "", "claim name")
	owner := fs.String("owner", "", "owner uuid (required unless -admin)")
	world := fs.String("world", "", "world name or uuid")
	aabb := fs.String("aabb", "", "corners: x1,y1,z1:x2,y2,z2")
	admin := fs.Bool("admin", false, "create an administrator claim")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	spec := claimstore.Spec{Name: *name, Admin: *admin}
	var err error
	if spec.World, err = c.world(*world); err != nil {
		return err
	}
	if spec.Corner1, spec.Corner2, err = parseAABB(*aabb); err != nil {
		return fmt.Errorf("%w: bad -aabb: %v", errUsage, err)
	}
	if !*admin {
		if spec.Owner, err = uuid.Parse(strings.TrimSpace(*owner)); err != nil {
			return fmt.Errorf("%w: bad -owner: %v", errUsage, err)
		}
	}

	s, err := c.open()
	if err != nil {
		return err
	}
	defer s.Close()
	cl, err := s.Create(context.Background(), spec)
	if err != nil {
		return err
	}
	c.record("create", "claim", cl.ID(), map[string]any{"name": cl.Name(), "admin": cl.IsAdminClaim()})
	fmt.Fprintf(out, "created %s\n", cl.ID())
	return nil
}

func listCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	c := commonFlags(fs)
	world := fs.String("world", "", "world name or uuid filter (optional)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	var filter uuid.UUID
	if strings.TrimSpace(*world) != "" {
		id, err := c.world(*world)
		if err != nil {
			return err
		}
		filter = id
	}

	s, err := c.open()
	if err != nil {
		return err
	}
	defer s.Close()
	for _, cl := range s.Claims() {
		if filter != uuid.Nil && cl.WorldID() != filter {
			continue
		}
		lo, hi := cl.LesserBoundaryCorner(), cl.GreaterBoundaryCorner()
		owner := cl.OwnerID().String()
		if cl.IsAdminClaim() {
			owner = "admin"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%d,%d,%d:%d,%d,%d\ttrusted=%d\n",
			cl.ID(), cl.Name(), owner, lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z, len(cl.Trusted()))
	}
	return nil
}

func claimArg(fs *flag.FlagSet) (uuid.UUID, error) {
	if fs.NArg() < 1 {
		return uuid.Nil, fmt.Errorf("%w: missing claim id", errUsage)
	}
	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad claim id: %v", errUsage, err)
	}
	return id, nil
}

func deleteCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	c := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	id, err := claimArg(fs)
	if err != nil {
		return err
	}
	s, err := c.open()
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Delete(context.Background(), id); err != nil {
		return err
	}
	c.record("delete", "claim", id, nil)
	fmt.Fprintf(out, "deleted %s\n", id)
	return nil
}

func renameCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rename", flag.ContinueOnError)
	c := commonFlags(fs)
	name := fs.String("name", "", "new name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	id, err := claimArg(fs)
	if err != nil {
		return err
	}
	s, err := c.open()
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Rename(context.Background(), id, *name); err != nil {
		return err
	}
	c.record("rename", "claim", id, map[string]any{"name": strings.TrimSpace(*name)})
	fmt.Fprintf(out, "renamed %s to %q\n", id, strings.TrimSpace(*name))
	return nil
}

func resizeCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("resize", flag.ContinueOnError)
	c := commonFlags(fs)
	aabb := fs.String("aabb", "", "new corners: x1,y1,z1:x2,y2,z2")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	a, b, err := parseAABB(*aabb)
	if err != nil {
		return fmt.Errorf("%w: bad -aabb: %v", errUsage, err)
	}
	id, err := claimArg(fs)
	if err != nil {
		return err
	}
	s, err := c.open()
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Resize(context.Background(), id, a, b); err != nil {
		return err
	}
	c.record("resize", "claim", id, map[string]any{"aabb": *aabb})
	fmt.Fprintf(out, "resized %s\n", id)
	return nil
}

func trustCmd(args []string, out io.Writer, grant bool) error {
	fs := flag.NewFlagSet("trust", flag.ContinueOnError)
	c := commonFlags(fs)
	player := fs.String("player", "", "player uuid")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	id, err := claimArg(fs)
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(strings.TrimSpace(*player))
	if err != nil {
		return fmt.Errorf("%w: bad -player: %v", errUsage, err)
	}
	s, err := c.open()
	if err != nil {
		return err
	}
	defer s.Close()
	if grant {
		err = s.Trust(context.Background(), id, pid)
	} else {
		err = s.Untrust(context.Background(), id, pid)
	}
	if err != nil {
		return err
	}
	verb := "trusted"
	if !grant {
		verb = "untrusted"
	}
	c.record(verb, "claim", id, map[string]any{"player": pid.String()})
	fmt.Fprintf(out, "%s %s on %s\n", verb, pid, id)
	return nil
}

func auditCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	c := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	entries, err := auditlog.ReadAll(*c.auditDir, "audit")
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", e.Time, e.Actor, e.Action, e.Kind, e.ID)
	}
	return nil
}

func parseAABB(s string) (a, b geom.Vec3i, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return a, b, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	if a, err = parseVec3(parts[0]); err != nil {
		return a, b, err
	}
	if b, err = parseVec3(parts[1]); err != nil {
		return a, b, err
	}
	return a, b, nil
}

func parseVec3(s string) (geom.Vec3i, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return geom.Vec3i{}, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return geom.Vec3i{}, err
		}
		v[i] = n
	}
	return geom.Vec3i{X: v[0], Y: v[1], Z: v[2]}, nil
}
