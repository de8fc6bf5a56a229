package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt builders for every model call the backend makes. Prompts demand raw
// JSON; callers still strip fences and fall back on parse failure because the
// model does not always comply.

func buildDiagnosticTestPrompt(goal, barrier, commitment, targetDuration string) string {
	return fmt.Sprintf(`SYSTEM ROLE: Senior English Assessment Developer.
TASK: Generate a diagnostic test JSON based on the learner profile below.

LEARNER PROFILE:
- Goal: %s
- Barrier: %s
- Commitment: %s/day
- Target: %s

STRICT TEST STRUCTURE (Total 21 Questions):
- ID 1-10: Grammar (Focus on practical structures for "%s")
- ID 11-20: Vocabulary (Situational terms for "%s" and "%s")
- ID 21: Speaking Prompt (Open-ended situational scenario) about "%s"

JSON SCHEMA REQUIREMENTS:
Return a single JSON object: {"questions": [...]}
Each item MUST have:
- "id": (int) strict sequence from 1 to 21.
- "question_text": (string) in English.
- "options":
    * For MCQ (ID 1-20): Array of exactly 4 strings. NO prefixes like "A)", "B)".
    * For Speaking (ID 21): Empty array [].
- "correct_answer_key":
    * For MCQ: Exactly one character "A", "B", "C", or "D".
    * For Speaking: Exactly "N/A".
- "question_type": "grammar", "vocabulary", or "speaking_prompt".

OUTPUT CONSTRAINT:
Return ONLY RAW JSON. No markdown blocks, no preamble, no conversational filler.
Ensure logically plausible distractors for MCQs.`,
		goal, barrier, commitment, targetDuration, goal, goal, barrier, goal)
}

func buildRoadmapPrompt(mcqAnalysis string, weakPoints []string, speakingOverall string, prefs RoadmapPreferences) string {
	weaknesses := "Not clearly identified"
	focus := "balancing all skills"
	if len(weakPoints) > 0 {
		weaknesses = strings.Join(weakPoints, ", ")
		focus = weaknesses
	}
	return fmt.Sprintf(`You are an expert in designing personalized English communication learning roadmaps.
You MUST return exactly one valid JSON, with no additional content outside the JSON.

Learner information:
    Quiz result: %s
    Key weaknesses: %s
    Speaking overall evaluation: "%s"
    Daily learning commitment: %s
    Communication goal: %s
    Target time to reach goal: %s

Strict requirements:
    Analyze the quiz result and speaking evaluation to estimate the learner's current CEFR level (A1, A2, B1...).
    Write an overall summary (50-100 words) in English for the "user_summary" key.
    Create a detailed learning roadmap tailored to the learner's level and weaknesses, divided into 2-4 phases.
    Each phase MUST contain a "weeks" array.
    In each week, the "grammar", "vocabulary", and "speaking" keys MUST be objects containing a "title", "lesson_id", and a detailed "items" array (at least 2 items).
    Every item MUST carry a unique "lesson_id" (format example: "P1_W1_G_Theory1").

RETURN ONLY ONE JSON FOLLOWING EXACTLY THIS STRUCTURE:
{
  "user_summary": "General overview in English (50-100 words)...",
  "estimated_level": "Example: Pre-Intermediate (A2)",
  "roadmap": {
    "summary": "A short 1-2 sentence summary of the roadmap",
    "current_status": "Goal: %s; Desired time: %s",
    "daily_plan_recommendation": "Recommended daily study: %s, focusing on speaking + vocabulary",
    "learning_phases": [
      {
        "phase_name": "Phase 1: Building the foundation",
        "duration_weeks": 4,
        "weeks": [
          {
            "week_number": 1,
            "grammar": {
              "title": "Present Simple & Present Continuous",
              "lesson_id": "P1_W1_Grammar",
              "items": [
                {"title": "Present Simple grammar", "lesson_id": "P1_W1_G_Theory1"},
                {"title": "Present Continuous grammar", "lesson_id": "P1_W1_G_Theory2"}
              ]
            },
            "vocabulary": {
              "title": "Daily routines, family, hobbies",
              "lesson_id": "P1_W1_Vocab",
              "items": [
                {"title": "Daily routine vocabulary (10 words)", "lesson_id": "P1_W1_V_Theory1"},
                {"title": "Family vocabulary (20 words)", "lesson_id": "P1_W1_V_Theory2"}
              ]
            },
            "speaking": {
              "title": "Introduce yourself & talk about a typical day (1-2 minutes)",
              "lesson_id": "P1_W1_Speaking",
              "items": [
                {"title": "Dialogue: Self-introduction", "lesson_id": "P1_W1_S_conversation1"}
              ]
            },
            "expected_outcome": "Speak basic sentences fluently about yourself and your daily routine"
          }
        ]
      }
    ]
  }
}

IMPORTANT:
    The total number of weeks across all phases must be reasonable based on the target duration (%s).
    Focus on addressing weaknesses: %s.
    Speaking tasks must be practical and recordable.
    Expected outcomes must be measurable (speaking duration, number of errors, fluency level...).
    All text values in the returned JSON MUST be written in English only.
    Start immediately with the JSON, no additional text.`,
		mcqAnalysis, weaknesses, speakingOverall,
		prefs.DailyCommitment, prefs.CommunicationGoal, prefs.TargetDuration,
		prefs.CommunicationGoal, prefs.TargetDuration, prefs.DailyCommitment,
		prefs.TargetDuration, focus)
}

func buildWeekAdjustmentPrompt(lastWeekNumber int, summaryJSON string, nextWeekNumber int, nextWeekJSON string, phaseLabel string) string {
	return fmt.Sprintf(`You are a Personalized Learning Roadmap Adjustment System. Your task is to thoroughly analyze the learning results from the previous week in order to adjust the learning content for the following week.

1. PREVIOUS WEEK ASSESSMENT DATA (Week %d):
%s

2. NEXT WEEK ROADMAP STRUCTURE (Week %d - ORIGINAL JSON FORMAT):
%s

YOUR ADJUSTMENT RULES:
- If there are any tasks in the 'review_tasks' list of Grammar, Vocabulary, or Speaking, insert these tasks at the BEGINNING of the 'items' list of the corresponding topic in the next week's structure.
- FOR NEW REVIEW TASKS:
  - Must include the key "type": "review".
  - The "title" key must have the prefix "REVIEW: ".
  - MUST include a unique "lesson_id" whose skill letter (G, V, or S) matches the topic.
    Examples:
    * Grammar Review: %s_W%d_G_Review1
    * Vocabulary Review: %s_W%d_V_Review1
    * Speaking Review: %s_W%d_S_Review1
- If the average score of a skill (avg_score) is too low (below 0.6), you may remove 1 or 2 new theory/vocabulary tasks in the next week to reduce workload.
- DO NOT change 'week_number' under any circumstances.
- DO NOT add any explanatory text; return ONLY the JSON OBJECT of the ADJUSTED NEXT WEEK ROADMAP STRUCTURE (including week_number, grammar, vocabulary, speaking, expected_outcome).

Please return the adjusted JSON of the NEXT WEEK ROADMAP STRUCTURE in English.`,
		lastWeekNumber, summaryJSON, nextWeekNumber, nextWeekJSON,
		phaseLabel, nextWeekNumber, phaseLabel, nextWeekNumber, phaseLabel, nextWeekNumber)
}

func buildGrammarQuizPrompt(topic, level string) string {
	return fmt.Sprintf(`You are an English test generator specializing in CEFR assessment.
The student's current proficiency level is %s.

Your task is to generate exactly 10 multiple-choice questions (MCQs) for the grammar topic: "%s".

CRUCIAL RULE (i+1 Principle): The difficulty of the questions must slightly challenge the student, approximately ONE STEP ABOVE their current level (e.g., if the student is B1, the test should be B2 difficulty).

For each question, provide:
1. The question text.
2. Exactly 4 options listed as plain strings, without "A.", "B.", "C.", "D." prefixes.
3. The correct answer KEY (A, B, C, or D).

Return the result strictly in JSON format as a list of objects:
[
  {"question": "string", "options": ["string", "string", "string", "string"], "answer": "A"}
]`, level, topic)
}

func buildConversationStartPrompt(level, topic string) string {
	return fmt.Sprintf(`You are a friendly English Tutor.
Task: Start a chat with a '%s' student about '%s'.

STRICT CONSTRAINTS:
1. EXTREMELY SHORT: Max 25 words.
2. NO INTRO: Do NOT say "I am your AI tutor" or explain how to practice.
3. ACTION: Say a warm "Hi" and ask ONE simple question about '%s' to get them talking immediately.

Example ideal output: "Hi! I love talking about %s. What is your favorite thing about it?"`,
		level, topic, topic, topic)
}

func buildFreeTalkTextPrompt(level, topic, context, userMessage string) string {
	return fmt.Sprintf(`You are an AI English tutor for a '%s' student. Topic: '%s'.
Tasks:
1. Reply naturally.
2. Identify grammar/vocab errors in the LAST message.
3. Suggest 1-2 topic vocab.
4. Provide metadata (0.0-1.0).

RETURN JSON ONLY:
{
  "reply": "...", "feedback": "...",
  "metadata": { "grammar_score": 0.9, "vocabulary_score": 0.8, "tips": "...", "evaluation": "..." }
}

Context:
%s
User: %s`, level, topic, context, userMessage)
}

func buildFreeTalkVoicePrompt(level, topic, context string) string {
	return fmt.Sprintf(`Act as a friendly English conversation partner. User Level: '%s'. Topic: '%s'.

CORE OBJECTIVE: Maintain a natural, engaging flow. Don't sound robotic.

YOUR TASKS:
1. Transcribe: Write down exactly what the user said (key: "transcribed_text").
2. Conversational Reply (The 'Friend'):
   - React naturally to the content.
   - Ask ONE relevant follow-up question to encourage more speech.
   - STRICT RULE: Do NOT correct grammar/pronunciation in this reply. Keep it conversational.
3. Educational Feedback (The 'Tutor'):
   - Analyze the audio quality and syntax.
   - Point out specific errors (Pronunciation, Grammar, Vocab) constructively.

Context:
%s

OUTPUT JSON:
{
  "transcribed_text": "...",
  "reply": "...",
  "feedback": "...",
  "metadata": {
    "grammar_score": 0.0,
    "pronunciation_score": 0.0,
    "fluency_score": 0.0,
    "tips": "short actionable advice",
    "evaluation": "brief summary"
  }
}`, level, topic, context)
}

func buildScenarioVoicePrompt(level, expectedLine string) string {
	return fmt.Sprintf(`Role: English Drama Coach. Student Level: %s.
Task: Evaluate if the student said the Expected Line correctly.

Expected Script Line: "%s"

INSTRUCTIONS:
1. Listen & Transcribe (key: "transcribed_text").
2. Check Accuracy: Did they say the expected line? Small variations are okay if the meaning is the same.
3. Evaluate Pronunciation (CRITICAL): Focus on Intonation, Stress, and Clarity.
4. Feedback:
   - If accurate: Praise the pronunciation/intonation.
   - If inaccurate: Point out the difference from the script.
   - DO NOT evaluate Grammar (they are reading a script).

OUTPUT JSON:
{
  "transcribed_text": "...",
  "immediate_feedback": "...",
  "metadata": {
    "grammar_score": null,
    "pronunciation_score": 0.0,
    "fluency_score": 0.0,
    "tips": "pronunciation or acting tip",
    "evaluation": "brief comment on performance"
  }
}`, level, expectedLine)
}

func buildSessionSummaryPrompt(mode, level, topic, transcript string) string {
	var instructions, verdictFocus, grammarValue, vocabSuggestions string
	if mode == "scenario" {
		instructions = `1. Script Fidelity (Accuracy): Did the student stick to the script and convey the correct lines?
2. Pronunciation & Acting: This is the MAIN focus. Analyze the log entries for pronunciation scores. Was the intonation natural for the role?
3. Note: Do NOT evaluate grammar (they read a script).`
		verdictFocus = "Focus on role-play accuracy and pronunciation."
		grammarValue = "null"
		vocabSuggestions = "[]"
	} else {
		instructions = fmt.Sprintf(`1. Fluency & Naturalness: Did the student keep the chat flowing?
2. Grammar & Vocabulary: Review mistakes and range.
3. Spontaneity: Was the speech natural?
4. Vocabulary Expansion: Suggest 3-4 advanced words or idioms related to the topic '%s' that the student did not use but would make them sound more native.`, topic)
		verdictFocus = "Focus on conversational ability."
		grammarValue = "0.0-1.0"
		vocabSuggestions = `["Suggestion 1", "Suggestion 2", "Suggestion 3", "Suggestion 4"]`
	}
	return fmt.Sprintf(`You are a Senior English Evaluator summarizing a '%s' session.
Level: %s. Topic: %s.

Log:
%s

TASK:
%s
Review the log entries for pronunciation trends.

OUTPUT JSON:
{
  "summary_text": "<Comprehensive summary. %s Mention pronunciation trends.>",
  "summary_metadata": {
    "grammar": %s,
    "vocabulary": 0.0,
    "pronunciation": 0.0,
    "key_grammar_points_observed": ["..."],
    "key_vocabulary_highlighted": ["..."],
    "key_pronunciation_points": ["..."],
    "relevant_vocabulary_suggestions": %s
  }
}`, strings.ToUpper(mode), level, topic, transcript, instructions, verdictFocus, grammarValue, vocabSuggestions)
}

func buildVocabEnrichmentPrompt(transcript string, candidates []string) string {
	raw, _ := json.Marshal(candidates)
	return fmt.Sprintf(`You are an expert English Vocabulary Coach.

Transcript:
%s

Target Suggestions: %s

TASK:
For each word in 'Target Suggestions', generate a JSON object containing:
1. word: The word itself.
2. type: The part of speech (e.g., noun, verb, adjective, idiom, phrasal verb).
3. meaning: A brief, clear definition relevant to the topic.
4. context: A natural, hypothetical example sentence using this word that fits the transcript context.

OUTPUT JSON ONLY:
[
  { "word": "string", "type": "string", "meaning": "string", "context": "string" }
]`, transcript, string(raw))
}

func buildDeckWordsPrompt(topic, level string, count int) string {
	return fmt.Sprintf(`You are an expert English Vocabulary Coach building a study deck.
Student level: %s. Deck topic: "%s".

TASK: Generate exactly %d useful words or short phrases for this topic, slightly above the student's level (i+1 principle).
For each entry provide:
1. word: the word or phrase.
2. type: part of speech (noun, verb, adjective, idiom, phrasal verb).
3. meaning: a brief, clear English definition.
4. pronunciation: IPA transcription.
5. context: one natural example sentence.

OUTPUT JSON ONLY:
[
  { "word": "string", "type": "string", "meaning": "string", "pronunciation": "string", "context": "string" }
]`, level, topic, count)
}
