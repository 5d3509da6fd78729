package agent

import "google.golang.org/genai"

const intentPrompt = "You are the intent router of a bookkeeping assistant.\n\n" +
	"Task:\n" +
	"- Read the conversation and classify the LATEST user message into exactly one intent.\n\n" +
	"Intents:\n" +
	"- \"log_expense\": the user reports spending or receiving money (e.g. \"coffee 28 yuan\", \"got my salary\").\n" +
	"- \"query_summary\": the user asks about recorded transactions (totals, averages, counts, listings, the latest entry).\n" +
	"- \"related_chat\": the user chats about money, budgets, habits or earlier conversations without reporting or querying a transaction.\n" +
	"- \"other\": anything else.\n\n" +
	"Rules:\n" +
	"- Classify only the latest user message; earlier turns are context.\n" +
	"- When a message both reports and asks, prefer \"log_expense\".\n"

const extractPrompt = "You extract one financial transaction from a single user message.\n\n" +
	"Fields (all optional, use null when absent):\n" +
	"- \"item\": what the money was for, a short noun phrase.\n" +
	"- \"amount\": number in major currency units; must be > 0 if present. Resolve colloquial amounts (\"两百五\" = 250, \"3k\" = 3000).\n" +
	"- \"currency\": ISO code like \"CNY\" or \"USD\"; null when the user does not name one.\n" +
	"- \"occurred_at_text\": the raw time phrase from the message, verbatim (e.g. \"yesterday morning\", \"昨天早上\").\n" +
	"- \"occurred_at_iso\": \"YYYY-MM-DDTHH:MM\" only when the message pins the moment exactly.\n" +
	"- \"category\", \"merchant\", \"note\": when clearly stated.\n" +
	"- \"type\": \"expense\" or \"income\"; default \"expense\".\n\n" +
	"Never invent values. A missing amount stays null, never 0.\n"

const fillPrompt = "A transaction draft is waiting for missing fields. Decide how the latest user message relates to it.\n\n" +
	"Actions:\n" +
	"- \"fill\": the message completes the SAME draft. Produce the completed candidate, merging the draft, the message, and anything inferable from recent turns.\n" +
	"- \"new_log\": the message describes a DIFFERENT transaction. Produce that new candidate; the draft stays as it is.\n" +
	"- \"cancel\": the user withdraws the pending draft (\"never mind\", \"forget it\", \"算了\").\n" +
	"- \"cancel_then_new\": the user withdraws the draft AND describes a replacement. Produce the replacement candidate.\n" +
	"- \"unrelated\": none of the above.\n\n" +
	"Tie-breaks:\n" +
	"- Linking words (\"also\", \"another\", \"separately\", \"还有\", \"另外\") or a clearly different item/merchant/time favor \"new_log\".\n" +
	"- Explicit cancellation phrasing favors \"cancel\" or \"cancel_then_new\".\n" +
	"- If the message plausibly supplies exactly the missing field(s), choose \"fill\".\n" +
	"- When in doubt between \"fill\" and \"unrelated\", choose \"fill\".\n"

const queryPrompt = "Translate the user's question about their ledger into a structured query plan.\n\n" +
	"Fields:\n" +
	"- \"metric\": \"sum\" (total spent), \"avg\", \"count\", \"list\" (show entries), or \"latest\".\n" +
	"- \"time_scope\": the user's time phrase verbatim (e.g. \"last week\", \"这个月\").\n" +
	"- \"start_iso\" / \"end_iso\": the INCLUSIVE date interval as \"YYYY-MM-DD\", resolved against the current date given below. Omit both when the question has no time constraint.\n" +
	"- \"item_keywords\": words from the question that should match item names (e.g. [\"coffee\"]).\n" +
	"- \"categories\", \"merchants\": exact names when the user names them.\n" +
	"- \"notes\": free text to match against entry notes.\n\n" +
	"Leave every filter empty unless the user asked for it.\n"

const respondPrompt = "You are a friendly bookkeeping assistant. Reply to the user in their language, in one short message.\n\n" +
	"You receive an internal state snapshot as JSON plus an instruction naming what to convey. Ground every number in the snapshot; amounts there are in minor units (divide by 100 for display). Never mention the snapshot, internal steps, or tools.\n"

const relatedPrompt = "You are a friendly bookkeeping assistant chatting with the user about their finances.\n\n" +
	"Notes retrieved from long-term memory are included as context; prefer grounding your reply in them, quoting specifics when helpful. Use search_memory for follow-up lookups and manage_memory to save a durable fact the user states about themselves. Reply in the user's language, briefly.\n"

// fallbackMessage is emitted when the generation call itself fails.
const fallbackMessage = "Sorry, something went wrong on my side. You can log an expense like \"coffee 28 yuan\" or ask \"how much did I spend this week?\"."

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {
			Type: genai.TypeString,
			Enum: []string{"log_expense", "query_summary", "related_chat", "other"},
		},
	},
	Required: []string{"intent"},
}

var candidateSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"item":             {Type: genai.TypeString, Nullable: ptr(true)},
		"amount":           {Type: genai.TypeNumber, Nullable: ptr(true)},
		"currency":         {Type: genai.TypeString, Nullable: ptr(true)},
		"occurred_at_text": {Type: genai.TypeString, Nullable: ptr(true)},
		"occurred_at_iso":  {Type: genai.TypeString, Nullable: ptr(true)},
		"category":         {Type: genai.TypeString, Nullable: ptr(true)},
		"merchant":         {Type: genai.TypeString, Nullable: ptr(true)},
		"note":             {Type: genai.TypeString, Nullable: ptr(true)},
		"type": {
			Type: genai.TypeString,
			Enum: []string{"expense", "income"},
		},
	},
}

var fillSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"action": {
			Type: genai.TypeString,
			Enum: []string{"fill", "new_log", "cancel", "cancel_then_new", "unrelated"},
		},
		"candidate": candidateSchema,
	},
	Required: []string{"action"},
}

var querySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"metric": {
			Type: genai.TypeString,
			Enum: []string{"sum", "avg", "count", "list", "latest"},
		},
		"time_scope":    {Type: genai.TypeString, Nullable: ptr(true)},
		"start_iso":     {Type: genai.TypeString, Nullable: ptr(true)},
		"end_iso":       {Type: genai.TypeString, Nullable: ptr(true)},
		"item_keywords": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"categories":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"merchants":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"notes":         {Type: genai.TypeString, Nullable: ptr(true)},
	},
	Required: []string{"metric"},
}

var searchMemorySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"query": {Type: genai.TypeString, Description: "What to look up in long-term memory."},
	},
	Required: []string{"query"},
}

var manageMemorySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"content": {Type: genai.TypeString, Description: "The fact to store, one or two sentences."},
	},
	Required: []string{"content"},
}

func ptr[T any](v T) *T { return &v }
