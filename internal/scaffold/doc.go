// Package scaffold creates new Quarkdown project skeletons.
//
// Layout for a project named "notes":
//
//	notes/
//	  src/notes.qmd     main document, from the chosen template
//	  assets/
//	  output/
//	  examples/         only with IncludeExamples
//	  quarkdown.yaml
//	  README.md
//	  .gitignore
//
// Templates are embedded text/template files, so the binary needs no data
// directory at runtime.
package scaffold
