/*
Package arbor is a reactive markup engine with a component loader and a
fragment router.

Declarative attributes on an HTML tree become live bindings against a shared
context:

	:if="expr"           render the element only while expr is truthy
	:for="expr"          repeat the element for every item (alias :each names the item)
	$prop="expr"         project expr onto a property of the element
	^prop="expr"         project expr onto a property of the parent
	@event="expr"        run expr when the element receives event
	@form="expr"         capture the form's fields into formData and run expr on submit

Every SetContext merges a patch into the persisted context, re-renders the
document and waits until the asynchronous evaluations it dispatched settle.

Components are markup fragments retrieved by locator. Their scripts run with
protocol and root as parameters and may attach mount and unmount hooks to the
root. The router swaps one view at a time inside the outlet when the fragment
"#page=<name>" changes, and either hook can veto or silence the transition by
returning the cancellation token it was given.

# Usage

	app, err := arbor.New(arbor.WithComponentsDir("web"))
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	ctx := context.Background()
	if err := app.Open(ctx, "index.html"); err != nil {
		log.Fatal(err)
	}
	if _, err := app.Navigate(ctx, "page=home"); err != nil {
		log.Fatal(err)
	}
	app.Render(os.Stdout)
*/
package arbor
