// Package pagehost defines the engine's view of the embedded web view:
// an opaque surface that can navigate and execute script, plus the
// snippets the replay driver injects into it.
package pagehost

import (
	"context"
	"encoding/json"
	"fmt"
)

// Host is the page-host capability the engine replays against. The
// embedding (webview, remote browser, test fake) is opaque to the engine.
type Host interface {
	// Navigate instructs the page host to load the given URL. The engine
	// does not wait for the load to complete; pacing is the replay
	// driver's responsibility.
	Navigate(ctx context.Context, url string) error

	// ExecuteScript evaluates JavaScript in the current page and returns
	// the script's result.
	ExecuteScript(ctx context.Context, script string) (any, error)
}

// quote renders a Go string as a JavaScript string literal.
func quote(s string) string {
	data, _ := json.Marshal(s)

	return string(data)
}

// ClickScript returns a snippet that clicks the selected element and
// reports whether it was found.
func ClickScript(selector string) string {
	return fmt.Sprintf(`(function() {
  var el = document.querySelector(%s);
  if (!el) { return false; }
  el.click();
  return true;
})()`, quote(selector))
}

// SetValueScript returns a snippet that assigns a value to the selected
// control and dispatches input and change events so framework listeners
// observe the edit.
func SetValueScript(selector, value string) string {
	return fmt.Sprintf(`(function() {
  var el = document.querySelector(%s);
  if (!el) { return false; }
  el.value = %s;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`, quote(selector), quote(value))
}

// SetCheckedScript returns a snippet that sets the checked state of a
// checkbox or radio control and dispatches a change event.
func SetCheckedScript(selector string, checked bool) string {
	return fmt.Sprintf(`(function() {
  var el = document.querySelector(%s);
  if (!el) { return false; }
  el.checked = %t;
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`, quote(selector), checked)
}

// SubmitScript returns a snippet that submits the selected form.
func SubmitScript(selector string) string {
	return fmt.Sprintf(`(function() {
  var el = document.querySelector(%s);
  if (!el) { return false; }
  el.submit();
  return true;
})()`, quote(selector))
}

// ExistsScript returns a snippet that reports whether the selector
// currently matches an element.
func ExistsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, quote(selector))
}
