/*
Package cipher decodes the link obfuscation used by kwik hosting pages.

Pages hide their links inside a packed script of the form

	eval(function(h,u,n,t,e,r){...}("<cipher>", 17, "<alphabet>", <offset>, <radix>, 24))

The cipher text is a list of segments separated by alphabet[radix]. Every
segment is a number written with alphabet symbols in base radix; the number
minus offset is one character of the hidden HTML.

# Decoding

Decode and DecodeSegment implement the scheme natively and never execute page
code. When the native result does not contain what the caller expected, a
ScriptEngine can run the page script itself with eval replaced by a recorder:

	engine, _ := cipher.NewScriptEngine(cipher.EngineGoja, 5*time.Second)
	html, err := engine.Evaluate(ctx, script)

Two engines are available: goja (default) and otto.

# Quirks

Characters that are not digits of the radix contribute zero to their segment
instead of failing. This mirrors the packer's own behavior and is kept as is.

# Error Codes

  - INVALID_RADIX: radix outside 2..64
  - MISSING_SEPARATOR: alphabet shorter than radix+1
  - NOT_INVERTIBLE: EncodeSegment cannot produce a decodable cipher
  - SCRIPT_NOT_FOUND: no script to evaluate
  - JS_EXECUTION_FAILED: script raised before calling eval
  - JS_TIMEOUT: evaluation interrupted by timeout or context
  - EVAL_NOT_CALLED: script finished without calling eval
  - UNKNOWN_ENGINE: NewScriptEngine got an unsupported name
*/
package cipher
