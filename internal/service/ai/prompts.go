package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

const notSpecified = "Not specified"

func profileOf(u *db.User) db.Profile {
	if u.Profile == nil {
		return db.Profile{}
	}
	return *u.Profile
}

func interestNames(u *db.User) []string {
	out := make([]string, 0, len(u.Interests))
	for _, i := range u.Interests {
		out = append(out, i.Name)
	}
	return out
}

func languageNames(u *db.User) []string {
	out := make([]string, 0, len(u.Languages))
	for _, l := range u.Languages {
		out = append(out, l.Name)
	}
	return out
}

func joinOr(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return strings.Join(items, ", ")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// sharedInterests returns the interests both users list, sorted.
func sharedInterests(a, b *db.User) []string {
	seen := make(map[string]bool, len(a.Interests))
	for _, i := range a.Interests {
		seen[i.Name] = true
	}
	var out []string
	for _, i := range b.Interests {
		if seen[i.Name] {
			out = append(out, i.Name)
		}
	}
	sort.Strings(out)
	return out
}

func startersPrompt(user, match *db.User, count int) Prompt {
	up, mp := profileOf(user), profileOf(match)
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d short, natural opening messages for a dating app for people who work in tech.\n\n", count)
	b.WriteString("Sender:\n")
	fmt.Fprintf(&b, "- Interests: %s\n", joinOr(interestNames(user), "general tech"))
	fmt.Fprintf(&b, "- Languages: %s\n", joinOr(languageNames(user), "programming"))
	fmt.Fprintf(&b, "- Role: %s\n", orDefault(up.CurrentRole, notSpecified))
	fmt.Fprintf(&b, "- Learning goals: %s\n\n", orDefault(up.LearningGoals, notSpecified))
	b.WriteString("Recipient:\n")
	fmt.Fprintf(&b, "- Username: %s\n", match.Username)
	fmt.Fprintf(&b, "- Interests: %s\n", joinOr(interestNames(match), "general tech"))
	fmt.Fprintf(&b, "- Languages: %s\n", joinOr(languageNames(match), "programming"))
	fmt.Fprintf(&b, "- Bio: %s\n", orDefault(mp.Bio, "No bio"))
	fmt.Fprintf(&b, "- Role: %s\n", orDefault(mp.CurrentRole, notSpecified))
	fmt.Fprintf(&b, "- Can teach: %s\n\n", orDefault(mp.CanTeach, notSpecified))
	b.WriteString("Each message must be under 150 characters, reference a shared interest or a complementary skill, and avoid cheesy lines.\n")
	b.WriteString("Reply with a numbered list and nothing else.")
	return Prompt{
		System:      "You write friendly, tech-flavoured conversation openers for professionals on a dating app.",
		User:        b.String(),
		Temperature: 0.8,
		MaxTokens:   1024,
	}
}

func personBlock(b *strings.Builder, label string, u *db.User) {
	p := profileOf(u)
	fmt.Fprintf(b, "%s:\n", label)
	fmt.Fprintf(b, "- Interests: %s\n", joinOr(interestNames(u), "none"))
	fmt.Fprintf(b, "- Languages: %s\n", joinOr(languageNames(u), "none"))
	fmt.Fprintf(b, "- Role: %s\n", orDefault(p.CurrentRole, notSpecified))
	fmt.Fprintf(b, "- Experience: %s\n", orDefault(p.ExperienceLevel, notSpecified))
	fmt.Fprintf(b, "- Learning goals: %s\n", orDefault(p.LearningGoals, notSpecified))
	fmt.Fprintf(b, "- Can teach: %s\n", orDefault(p.CanTeach, notSpecified))
	fmt.Fprintf(b, "- Looking for: %s\n\n", orDefault(u.LookingFor, notSpecified))
}

func compatibilityPrompt(user, match *db.User) Prompt {
	var b strings.Builder
	b.WriteString("Assess how well these two tech professionals would get along as a couple.\n\n")
	personBlock(&b, "Person A", user)
	personBlock(&b, "Person B", match)
	b.WriteString(`Answer with one JSON object of this shape:
{
  "compatibility_score": <integer 0-100>,
  "strengths": ["...", "...", "..."],
  "learning_opportunities": "what each can learn from the other",
  "conversation_topics": ["...", "...", "..."],
  "overall_summary": "one or two sentences"
}
Output the JSON only.`)
	return Prompt{
		System:      "You analyse compatibility between tech professionals from their skills, goals and what they are looking for.",
		User:        b.String(),
		Temperature: 0.6,
		MaxTokens:   1024,
	}
}

func dateIdeasPrompt(user, match *db.User, count int) Prompt {
	up, mp := profileOf(user), profileOf(match)
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d date ideas for two tech professionals who just matched.\n\n", count)
	fmt.Fprintf(&b, "Shared interests: %s\n", joinOr(sharedInterests(user, match), "tech in general"))
	fmt.Fprintf(&b, "City: %s\n", orDefault(user.City, "their area"))
	fmt.Fprintf(&b, "Collaboration interest: %s\n", orDefault(up.CollaborationInterest, "any activity"))
	fmt.Fprintf(&b, "Person A can teach: %s\n", orDefault(up.CanTeach, "various skills"))
	fmt.Fprintf(&b, "Person B can teach: %s\n\n", orDefault(mp.CanTeach, "various skills"))
	b.WriteString("Mix casual and creative, indoor and outdoor. Every idea should leave room to talk and suit an early date.\n")
	b.WriteString("Write each idea as **Title**: two or three sentences of description.")
	return Prompt{
		System:      "You plan fun, realistic dates for people who bond over technology.",
		User:        b.String(),
		Temperature: 0.9,
		MaxTokens:   1024,
	}
}

func bioPrompt(user *db.User, bio string) Prompt {
	p := profileOf(user)
	var b strings.Builder
	if strings.TrimSpace(bio) != "" {
		b.WriteString("Improve this dating profile bio for a tech professional while keeping its meaning.\n\n")
		fmt.Fprintf(&b, "Current bio:\n%s\n\n", bio)
		fmt.Fprintf(&b, "Role: %s\nInterests: %s\nExperience: %s\n\n",
			orDefault(p.CurrentRole, notSpecified), joinOr(interestNames(user), "none"), orDefault(p.ExperienceLevel, notSpecified))
		b.WriteString("Reply with:\nIMPROVED BIO:\n<two or three sentences>\n\nSUGGESTIONS:\n1. ...\n2. ...\n3. ...")
	} else {
		b.WriteString("Write a dating profile bio for a tech professional.\n\n")
		fmt.Fprintf(&b, "Role: %s\nInterests: %s\nLanguages: %s\nExperience: %s\nLearning goals: %s\nCan teach: %s\n\n",
			orDefault(p.CurrentRole, "Developer"),
			joinOr(interestNames(user), "coding"),
			joinOr(languageNames(user), "Go"),
			orDefault(p.ExperienceLevel, "Intermediate"),
			orDefault(p.LearningGoals, "Expanding knowledge"),
			orDefault(p.CanTeach, "Various skills"))
		b.WriteString("Give three options of two or three sentences each: professional, casual and enthusiastic. Label each option.")
	}
	return Prompt{
		System:      "You help tech professionals write honest, engaging dating profiles.",
		User:        b.String(),
		Temperature: 0.8,
		MaxTokens:   800,
	}
}

func coachPrompt(draft, situation string) Prompt {
	var b strings.Builder
	b.WriteString("Someone wants feedback on a message they plan to send on a dating app.\n\n")
	fmt.Fprintf(&b, "Draft:\n%q\n\n", draft)
	if strings.TrimSpace(situation) != "" {
		fmt.Fprintf(&b, "Context: %s\n\n", situation)
	}
	b.WriteString("Give the tone in a few words, two or three concrete suggestions, and an improved version only if it helps. Be kind and honest.")
	return Prompt{
		System:      "You are a supportive dating coach who helps people communicate clearly.",
		User:        b.String(),
		Temperature: 0.7,
		MaxTokens:   512,
	}
}

func insightsPrompt(user *db.User, stats ProfileStats) Prompt {
	p := profileOf(user)
	var b strings.Builder
	b.WriteString("Review this dating profile and give actionable advice.\n\n")
	fmt.Fprintf(&b, "Bio: %s\n", orDefault(p.Bio, "No bio"))
	fmt.Fprintf(&b, "Role: %s\n", orDefault(p.CurrentRole, notSpecified))
	fmt.Fprintf(&b, "Experience: %s\n", orDefault(p.ExperienceLevel, notSpecified))
	fmt.Fprintf(&b, "Interests listed: %d\n", len(user.Interests))
	fmt.Fprintf(&b, "Languages listed: %d\n", len(user.Languages))
	fmt.Fprintf(&b, "Photos: %d\n", stats.PhotoCount)
	fmt.Fprintf(&b, "Completeness: %d%%\n\n", stats.Completeness)
	fmt.Fprintf(&b, "Likes sent: %d\nLikes received: %d\nMatches: %d\n\n", stats.LikesSent, stats.LikesReceived, stats.Matches)
	b.WriteString("Give a profile strength score from 0 to 100 with a short reason, the top three strengths, three improvements with concrete steps, and two or three tips to get more matches.")
	return Prompt{
		System:      "You optimise dating profiles for tech professionals with practical advice.",
		User:        b.String(),
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

func moderationPrompt(contentType, content string) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Review this %s from a dating platform for explicit content, harassment, spam or scams, shared personal contact details and unsafe requests.\n\n", contentType)
	fmt.Fprintf(&b, "Content:\n%s\n\n", content)
	b.WriteString(`Answer with one JSON object:
{
  "is_safe": true|false,
  "risk_level": "low"|"medium"|"high",
  "issues": ["..."],
  "suggested_action": "allow"|"warn"|"block",
  "reason": "short explanation"
}
Output the JSON only.`)
	return Prompt{
		System:      "You moderate content on a dating platform. Flirting is fine; harassment is not.",
		User:        b.String(),
		Temperature: 0.3,
		MaxTokens:   512,
	}
}
