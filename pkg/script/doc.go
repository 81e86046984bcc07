/*
Package script runs directive expressions and component scripts on a goja
JavaScript runtime.

Expressions are compiled once per text into a function of a single scope
object, $env, and evaluated inside with($env) so bare identifiers resolve
against the scope. Text that is not a valid expression (a statement list
such as "n++; save()") is compiled as a function body instead.

Host nodes are exposed through identity-mapped wrapper objects: the same
*html.Node always yields the same JavaScript object, so properties a script
attaches to a component root (mount, unmount) survive across calls.

A Runtime is not safe for concurrent use. Every call must happen on the
render loop.
*/
package script
