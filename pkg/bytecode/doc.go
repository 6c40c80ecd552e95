// Package bytecode defines compiled dialogue programs: the instruction set
// executed by the dialogue VM, the Program container of named nodes and
// line strings, and the ways programs are built, stored and inspected.
//
// # Programs
//
// A Program is the output of the dialogue compiler. It holds:
//
//   - Nodes: independently addressable instruction sequences, keyed by name.
//     Each node carries its own jump labels, tags, optional source text and
//     a source map for debugging.
//
//   - Strings: the line table mapping line IDs to display templates. Line
//     and option instructions refer to lines by ID only.
//
// Programs are immutable once validated. The VM never modifies a program
// and assumes Validate has succeeded.
//
// # Encodings
//
// Programs are stored in one of three forms:
//
//   - Compiled (.yarnc): a "YRNC" magic, a big-endian format version and a
//     canonical CBOR body. See MarshalProgram.
//
//   - YAML and JSON program documents: a readable assembly form checked
//     against a JSON Schema before assembly. See ParseYAML.
//
//   - Disassembly: a listing for humans, produced by Program.Disassemble.
//
// NodeBuilder assembles nodes programmatically and is what the document
// assembler uses underneath.
package bytecode
