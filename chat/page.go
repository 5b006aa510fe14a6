package chat

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"

	"github.com/onnwee/lurk-tender/backend/emotes"
)

// Selectors for the pieces of chat UI the driver touches. These track the
// page's data-test attributes, which are far more stable than class names.
const (
	selChatScroller = `[data-a-target='chat-scroller']`
	selPickerButton = `[data-a-target='emote-picker-button']`
	selPickerPanel  = `div.emote-picker__tab-content`
	selSendButton   = `[data-a-target='chat-send-button']`
	selRulesOK      = `[data-test-selector='chat-rules-ok-button']`
	selInputTokens  = `[data-a-target='chat-input'] [data-a-target='emote-name']`
)

// sectionSelector maps an emote to the picker category button that reveals
// it. Emotes without a recognizable section return "" and rely on the picker
// already showing them.
func sectionSelector(e emotes.Emote) string {
	switch e.Type {
	case emotes.TypeHypeTrain:
		return `button[data-a-target="HYPE_TRAIN_EMOTES"]`
	case emotes.TypeGlobals:
		return `button[data-a-target="GLOBAL_EMOTES"]`
	}
	if e.Owner != nil && e.Owner.DisplayName != "" {
		return fmt.Sprintf(`button[data-a-target="category-ref-%s"]`, e.Owner.DisplayName)
	}
	return ""
}

// emoteButtonSelector matches the picker button for one emote by the image
// URL embedding its id.
func emoteButtonSelector(e emotes.Emote) string {
	return fmt.Sprintf(`button[data-test-selector="emote-button-clickable"]:has(img[src*="%s"])`, e.ID)
}

const jsIsVisible = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	const style = window.getComputedStyle(el);
	return style.display !== "none" && style.visibility !== "hidden" && el.offsetParent !== null;
}`

const jsClick = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.click();
	return true;
}`

const jsCountVisible = `(sel) =>
	Array.from(document.querySelectorAll(sel)).filter(el => el.offsetParent !== null).length`

// isVisible reports whether the first match for sel is rendered.
func isVisible(page *rod.Page, sel string) (bool, error) {
	res, err := page.Eval(jsIsVisible, sel)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// click clicks the first match for sel through the page's own handlers.
func click(page *rod.Page, sel string) (bool, error) {
	res, err := page.Eval(jsClick, sel)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// countVisible counts rendered matches for sel.
func countVisible(page *rod.Page, sel string) (int, error) {
	res, err := page.Eval(jsCountVisible, sel)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

// The chat input is a React-managed contenteditable; plain value assignment
// is ignored. These probes walk the React fiber tree the same way userland
// chat tooling does, reaching the component that owns the input value.
const jsGetInputValue = `() => {
	const sel = "textarea[data-a-target='chat-input'], div[data-a-target='chat-input']";
	const el = document.querySelector(sel);
	if (!el) return "";
	if (el.value != null) return el.value;
	const fiberKey = Object.keys(el).find(k =>
		k.startsWith("__reactInternalInstance$") || k.startsWith("__reactFiber$"));
	if (!fiberKey) return "";
	let node = el[fiberKey];
	for (let depth = 0; node && depth <= 15; depth++) {
		const props = node.memoizedProps;
		if (props && props.componentType != null && props.value != null) return props.value;
		node = node.return;
	}
	return "";
}`

const jsSetInputValue = `(text) => {
	const sel = "textarea[data-a-target='chat-input'], div[data-a-target='chat-input']";
	const el = document.querySelector(sel);
	if (!el) return false;
	if (el.value != null) {
		el.value = text;
		el.dispatchEvent(new Event("input", { bubbles: true }));
		el.focus();
		return true;
	}
	const fiberKey = Object.keys(el).find(k =>
		k.startsWith("__reactInternalInstance$") || k.startsWith("__reactFiber$"));
	if (!fiberKey) return false;
	let node = el[fiberKey];
	for (let depth = 0; node && depth <= 15; depth++) {
		const props = node.memoizedProps;
		if (props && props.componentType != null && props.value != null) {
			props.setInputValue(text);
			props.onValueUpdate(text);
			el.focus();
			return true;
		}
		node = node.return;
	}
	return false;
}`

// inputValue reads the chat input's current text.
func inputValue(page *rod.Page) (string, error) {
	res, err := page.Eval(jsGetInputValue)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// setInputValue writes text into the chat input through the page's React
// state so the send button picks it up.
func setInputValue(page *rod.Page, text string) (bool, error) {
	res, err := page.Eval(jsSetInputValue, text)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// tokensMessage joins emote tokens into the literal message the fallback
// path types when picker clicks fail.
func tokensMessage(batch []emotes.Emote) string {
	tokens := make([]string, 0, len(batch))
	for _, e := range batch {
		if e.Token != "" {
			tokens = append(tokens, e.Token)
		}
	}
	return strings.Join(tokens, " ")
}
