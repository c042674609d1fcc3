package intake

// extractionSystemPrompt frames the extraction call. The bias rules matter:
// users with attention-regulation difficulty are easily overwhelmed, so
// urgency is assigned conservatively and estimates trend realistic-or-larger.
const extractionSystemPrompt = `You are a task extraction assistant for someone who struggles with attention regulation. They write notes in plain language; you turn those notes into structured tasks without adding pressure.

Always respond with a valid JSON array. Do not include any text outside the JSON array.`

// extractionUserPrompt is the user prompt template for task extraction.
// Placeholders: current date (YYYY-MM-DD), current weekday, note content.
const extractionUserPrompt = `Today is %s (%s). Extract every distinct action item from the note below as a separate task and categorize each one.

**Urgency** (err on the side of NOT urgent, to reduce overwhelm):
- Mark urgent ONLY for an explicit deadline under 48 hours, or explicit urgency language ("ASAP", "urgent", "now", "today")
- "by Friday" when Friday is within 48 hours = urgent; "next week" = not urgent

**Importance** (independent of urgency):
- Mark important for significant consequences, high value, or explicit importance
- Consider long-term impact: a job application is important, checking email is not

**Area** (choose exactly one):
- "work": job, projects, meetings, teaching, students, lessons
- "personal": home, family, errands, general life admin
- "health": exercise, doctor, medication, mental health, wellbeing
- "social": friends, events, calls, birthdays

**Time estimate** (minutes; be realistic, people underestimate):
- Quick tasks 15-30, normal tasks 30-60, big tasks 60-120
- Omit when the note gives no basis for an estimate

**Due date**:
- Resolve relative dates ("tomorrow", "Friday", "next week") against today's date above
- Return RFC 3339 format, e.g. "2026-08-28T17:00:00Z"
- If a phrase cannot be anchored to a specific day (e.g. "next week" with no weekday, "soon"), leave due_date empty rather than guessing

Note:
---
%s
---

Respond with a JSON array only. One element per action item; an empty array if the note contains no tasks:
[{"title":"...","notes":"...","urgent":false,"important":false,"area":"...","estimated_minutes":30,"due_date":"","reasoning":"..."}]`
