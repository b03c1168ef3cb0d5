package sources

// Recorded /get_transcript and ytInitialData shapes, trimmed to the fields read.
const (
	cueGroupsBody   = `{"actions":[{"updateEngagementPanelAction":{"content":{"transcriptRenderer":{"body":{"transcriptBodyRenderer":{"cueGroups":[{"transcriptCueGroupRenderer":{"cues":[{"transcriptCueRenderer":{"startOffsetMs":"1000","durationMs":"2000","cue":{"simpleText":"hello there"}}}]}},{"transcriptCueGroupRenderer":{"cues":[{"transcriptCueRenderer":{"startOffsetMs":3500,"durationMs":1000,"cue":{"runs":[{"text":"general "},{"text":"kenobi"}]}}}]}},{"transcriptCueGroupRenderer":{"cues":[{"transcriptCueRenderer":{"startOffsetMs":"5000","cue":{"simpleText":""}}}]}}]}}}}}}]}`
	segmentListBody = `{"actions":[{"updateEngagementPanelAction":{"content":{"transcriptRenderer":{"content":{"transcriptSearchPanelRenderer":{"body":{"transcriptSegmentListRenderer":{"initialSegments":[{"transcriptSegmentRenderer":{"startMs":"0","endMs":"1200","snippet":{"runs":[{"text":"first"}]}}},{"transcriptSegmentRenderer":{"startMs":"1200","endMs":"2400","snippet":{"simpleText":"second"}}}]}}}}}}}}]}`
	deepWalkBody    = `{"onResponseReceivedActions":[{"appendItems":{"items":[{"transcriptSegmentRenderer":{"startMs":"500","snippet":{"simpleText":"deep one"}}},{"x":1,"label":"transcriptCueRenderer","transcriptCueRenderer":{"startOffsetMs":"900","cue":{"simpleText":"deep two"}}}]}}]}`
	initialDataJSON = `{"contents":{"panel":{"transcriptSegmentListRenderer":{"initialSegments":[{"transcriptSegmentRenderer":{"startMs":"1000","snippet":{"simpleText":"hello"}}},{"transcriptSegmentRenderer":{"startMs":"2000","snippet":{"simpleText":"world"}}}]}}},"engagementPanels":[{"body":{"transcriptSegmentListRenderer":{"initialSegments":[{"transcriptSegmentRenderer":{"startMs":"1000","snippet":{"simpleText":"hello"}}},{"transcriptSegmentRenderer":{"startMs":"2000","snippet":{"simpleText":"world"}}}]}}},{"other":{"transcriptCueRenderer":{"startOffsetMs":"1000","cue":{"simpleText":"hello"}}}}]}`
)
