package api

const uploadForm = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Interview Insights</title></head>
<body>
  <h1>Upload an interview answer</h1>
  <form action="/process" method="post" enctype="multipart/form-data">
    <p><label>Interview question<br><textarea name="interview_question" rows="3" cols="60" required></textarea></label></p>
    <p><label>Video<br><input type="file" name="video" accept="video/*" required></label></p>
    <p><button type="submit">Analyze</button></p>
  </form>
</body>
</html>
`
