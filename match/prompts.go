package match

// matchSystemPrompt frames the comparison call. Semantic relatedness is the
// whole point: two items about the same piece of work should match even when
// they share no words.
const matchSystemPrompt = `You compare a new note against a person's existing task list to find tasks that are about the same underlying work.

Judge semantic relatedness, not keyword overlap. "Finish the demo video" and "Record storyboard walkthrough for ADE" are the same work if both concern that video; "book blood test" and "film a demo" are unrelated even if both mention a date.

Always respond with a valid JSON array. Do not include any text outside the JSON array.`

// matchUserPrompt is the user prompt template for similarity scoring.
// Placeholders: the new note, the numbered open-task list.
const matchUserPrompt = `New note:
---
%s
---

Existing open tasks (numbered from 0):
%s
Score how likely the note describes the SAME work as each existing task, 0-100:
- 90-100: clearly the same task, possibly reworded
- 70-89: very likely the same underlying work
- Below 70: related area at most, not the same task

Only include tasks scoring 70 or higher. Sharing a category or a person's name is not enough; the note must concern the same concrete piece of work.

Respond with a JSON array only. "task_index" is the zero-based number from the list above. An empty array if nothing reaches 70:
[{"task_index":0,"similarity":85,"reasoning":"..."}]`
