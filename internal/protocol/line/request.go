package line

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/memfsd/pkg/memfs"
)

// Separator splits the fields of a request line.
const Separator = "|"

// Menu selects the subsystem a request is routed to.
type Menu byte

const (
	// MenuMain is the account menu: register, login, exit
	MenuMain Menu = 'm'

	// MenuClient is the file menu
	MenuClient Menu = 'c'
)

// Op identifies a request. The wire tag is only unique within a menu, so
// Op values carry both.
type Op int

const (
	OpRegister Op = iota + 1
	OpLogin
	OpExit

	OpCreate
	OpDelete
	OpRename
	OpOpen
	OpClose
	OpRead
	OpWrite
	OpLogout
)

type opDef struct {
	name  string
	menu  Menu
	tag   byte
	nargs int
}

var ops = map[Op]opDef{
	OpRegister: {"register", MenuMain, 'r', 2},
	OpLogin:    {"login", MenuMain, 'l', 2},
	OpExit:     {"exit", MenuMain, 'e', 0},

	OpCreate: {"create", MenuClient, 'c', 4},
	OpDelete: {"delete", MenuClient, 'd', 1},
	OpRename: {"rename", MenuClient, 'r', 2},
	OpOpen:   {"open", MenuClient, 'o', 2},
	OpClose:  {"close", MenuClient, 'x', 1},
	OpRead:   {"read", MenuClient, 'l', 2},
	OpWrite:  {"write", MenuClient, 'w', 3},
	OpLogout: {"logout", MenuClient, 'e', 0},
}

var byTag = func() map[Menu]map[byte]Op {
	m := map[Menu]map[byte]Op{MenuMain: {}, MenuClient: {}}
	for op, def := range ops {
		m[def.menu][def.tag] = op
	}
	return m
}()

func (o Op) String() string {
	if def, ok := ops[o]; ok {
		return def.name
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// Menu returns the menu the operation belongs to.
func (o Op) Menu() Menu { return ops[o].menu }

// Request is a parsed request line. Only the fields used by Op are set.
type Request struct {
	Op Op

	// register, login
	Client   string
	Password string

	// create, delete, rename, open
	Name    string
	NewName string

	// create, write
	Content string

	// create
	Owner  memfs.Permission
	Others memfs.Permission

	// open
	Permission memfs.Permission

	// close, read, write
	FD     int
	Length int
}

// Parse decodes one request line. The line must not include the trailing
// newline; a trailing carriage return is ignored.
//
// Any deviation from the grammar is a *ProtocolError.
func Parse(text string) (*Request, error) {
	text = strings.TrimSuffix(text, "\r")
	fields := strings.Split(text, Separator)
	if len(fields) < 2 {
		return nil, newProtocolError(text, "expected at least a menu and an operation tag")
	}

	menu, err := parseTag(fields[0])
	if err != nil {
		return nil, newProtocolError(text, "menu tag: %v", err)
	}
	tags, ok := byTag[Menu(menu)]
	if !ok {
		return nil, newProtocolError(text, "unknown menu tag %q", fields[0])
	}

	tag, err := parseTag(fields[1])
	if err != nil {
		return nil, newProtocolError(text, "operation tag: %v", err)
	}
	op, ok := tags[tag]
	if !ok {
		return nil, newProtocolError(text, "unknown operation %q in menu %q", fields[1], fields[0])
	}

	args := fields[2:]
	if want := ops[op].nargs; len(args) != want {
		return nil, newProtocolError(text, "%s takes %d arguments, got %d", op, want, len(args))
	}

	req := &Request{Op: op}
	switch op {
	case OpRegister, OpLogin:
		req.Client, req.Password = args[0], args[1]

	case OpCreate:
		req.Name, req.Content = args[0], args[1]
		if req.Owner, err = memfs.ParsePermission(args[2]); err != nil {
			return nil, newProtocolError(text, "owner permission: %v", err)
		}
		if req.Others, err = memfs.ParsePermission(args[3]); err != nil {
			return nil, newProtocolError(text, "others permission: %v", err)
		}

	case OpDelete:
		req.Name = args[0]

	case OpRename:
		req.Name, req.NewName = args[0], args[1]

	case OpOpen:
		req.Name = args[0]
		if req.Permission, err = memfs.ParsePermission(args[1]); err != nil {
			return nil, newProtocolError(text, "permission: %v", err)
		}

	case OpClose:
		if req.FD, err = parseNumber(args[0]); err != nil {
			return nil, newProtocolError(text, "descriptor: %v", err)
		}

	case OpRead:
		if req.FD, err = parseNumber(args[0]); err != nil {
			return nil, newProtocolError(text, "descriptor: %v", err)
		}
		if req.Length, err = parseNumber(args[1]); err != nil {
			return nil, newProtocolError(text, "length: %v", err)
		}

	case OpWrite:
		if req.FD, err = parseNumber(args[0]); err != nil {
			return nil, newProtocolError(text, "descriptor: %v", err)
		}
		req.Content = args[1]
		if req.Length, err = parseNumber(args[2]); err != nil {
			return nil, newProtocolError(text, "length: %v", err)
		}
	}

	return req, nil
}

// Encode renders the request as a line without the trailing newline.
//
// Text fields must not contain the separator or a line break; Encode returns
// an error rather than produce a line that would parse differently.
func (r *Request) Encode() (string, error) {
	def, ok := ops[r.Op]
	if !ok {
		return "", fmt.Errorf("unknown operation %d", r.Op)
	}

	var args []string
	switch r.Op {
	case OpRegister, OpLogin:
		args = []string{r.Client, r.Password}
	case OpCreate:
		args = []string{r.Name, r.Content, r.Owner.String(), r.Others.String()}
	case OpDelete:
		args = []string{r.Name}
	case OpRename:
		args = []string{r.Name, r.NewName}
	case OpOpen:
		args = []string{r.Name, r.Permission.String()}
	case OpClose:
		args = []string{strconv.Itoa(r.FD)}
	case OpRead:
		args = []string{strconv.Itoa(r.FD), strconv.Itoa(r.Length)}
	case OpWrite:
		args = []string{strconv.Itoa(r.FD), r.Content, strconv.Itoa(r.Length)}
	}

	fields := make([]string, 0, 2+len(args))
	fields = append(fields, string(def.menu), string(def.tag))
	for _, arg := range args {
		if strings.ContainsAny(arg, Separator+"\r\n") {
			return "", fmt.Errorf("%s: field %q contains a separator or line break", r.Op, arg)
		}
		fields = append(fields, arg)
	}
	return strings.Join(fields, Separator), nil
}

func parseTag(field string) (byte, error) {
	if len(field) != 1 {
		return 0, fmt.Errorf("expected one character, got %q", field)
	}
	c := field[0]
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	return c, nil
}

// parseNumber accepts a non-negative decimal integer with no sign.
func parseNumber(field string) (int, error) {
	n, err := strconv.ParseUint(field, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", field)
	}
	return int(n), nil
}
