// Package prompts contains the LLM prompt templates used by the
// assistant to turn user messages into action JSON.
//
// Prompt text is Go code rather than config files because it is program logic:
// templates are interpolated with the current time, the user's time zone and
// recent conversation turns, and the action vocabulary they describe must
// stay in step with the parser. Each prompt gets an exported function that
// accepts the dynamic parts and returns the fully interpolated string.
package prompts
