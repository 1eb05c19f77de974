// Command lzc inspects and produces packed property lists, and
// checks dataset name syntax.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/kr/pretty"

	"github.com/mikoim/lzc"
	"github.com/mikoim/lzc/nvpair"
)

func main() {
	root := &command.C{
		Name:  "lzc",
		Usage: "command args...",
		Commands: []*command.C{
			{
				Name:  "pack",
				Usage: "pack [file.json]",
				Help: `Pack a JSON object into the native serialized form.

Reads a JSON object from the given file (or stdin with no argument)
and writes its packed encoding to the output path. Object key order
is preserved. Numbers must be integers: non-negative values encode
as unsigned 64-bit, negative as signed 64-bit.`,
				SetFlags: command.Flags(flax.MustBind, &packArgs),
				Run:      runPack,
			},
			{
				Name:  "dump",
				Usage: "dump file",
				Help:  "Decode a packed property list and print its contents.",
				Run:   command.Adapt(runDump),
			},
			{
				Name:  "check",
				Usage: "check name...",
				Help: `Check dataset name syntax.

Each name is validated against the filesystem, snapshot and bookmark
grammars, and its pool and filesystem components are shown.`,
				Run: runCheck,
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}
	command.RunOrFail(root.NewEnv(nil), os.Args[1:])
}

var packArgs struct {
	Out string `flag:"out,default=props.nv,Output file path"`
}

func runPack(env *command.Env) error {
	var in io.Reader = os.Stdin
	if len(env.Args) > 1 {
		return env.Usagef("pack takes at most one argument")
	}
	if len(env.Args) == 1 {
		f, err := os.Open(env.Args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	dec := json.NewDecoder(in)
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("input must be a JSON object, got %v", tok)
	}
	props, err := decodeObject(dec)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	l, err := lzc.Encode(nil, props)
	if err != nil {
		return fmt.Errorf("encoding properties: %w", err)
	}
	defer l.Free()
	bs, err := nvpair.Pack(l)
	if err != nil {
		return fmt.Errorf("packing properties: %w", err)
	}
	if err := os.WriteFile(packArgs.Out, bs, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %d bytes to %s\n", len(bs), packArgs.Out)
	return nil
}

// decodeObject reads the members of a JSON object whose opening
// brace has already been consumed, preserving member order.
func decodeObject(dec *json.Decoder) (*lzc.Map, error) {
	m := lzc.NewMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string, got %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		m.Set(key, v)
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return nil, err
	}
	return m, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return t, nil
	case json.Number:
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return u, nil
		}
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return i, nil
		}
		return nil, fmt.Errorf("number %s is not an integer", t)
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			var vs []any
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				vs = append(vs, v)
			}
			if _, err := dec.Token(); err != nil { // closing bracket
				return nil, err
			}
			return vs, nil
		}
	}
	return nil, fmt.Errorf("unsupported JSON value %v", tok)
}

func runDump(env *command.Env, path string) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	l, err := nvpair.Unpack(bs, nvpair.Std)
	if err != nil {
		return fmt.Errorf("unpacking %s: %w", path, err)
	}
	defer l.Free()
	props := lzc.NewMap()
	if err := lzc.Decode(l, props); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	for k, v := range props.All() {
		fmt.Printf("%s: %# v\n", k, pretty.Formatter(v))
	}
	return nil
}

func runCheck(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("check requires at least one name")
	}
	bad := false
	for _, name := range env.Args {
		var kinds []string
		if lzc.ValidFilesystemName(name) {
			kinds = append(kinds, "filesystem")
		}
		if lzc.ValidSnapshotName(name) {
			kinds = append(kinds, "snapshot")
		}
		if lzc.ValidBookmarkName(name) {
			kinds = append(kinds, "bookmark")
		}
		if len(name) > lzc.MaxNameLen {
			kinds = nil
		}
		if len(kinds) == 0 {
			fmt.Printf("%s: invalid\n", name)
			bad = true
			continue
		}
		fmt.Printf("%s: %s (pool %q, filesystem %q)\n",
			name, strings.Join(kinds, ", "), lzc.PoolName(name), lzc.FilesystemName(name))
	}
	if bad {
		return fmt.Errorf("some names are invalid")
	}
	return nil
}
