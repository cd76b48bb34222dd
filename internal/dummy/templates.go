package dummy

import "html/template"

const layout = `{{define "head"}}<!DOCTYPE html>
<html>
<head><title>Computers database</title></head>
<body>
<header><h1><a href="/">Computer database</a></h1></header>
<section id="main">{{end}}
{{define "foot"}}</section>
</body>
</html>{{end}}`

var listTmpl = template.Must(template.New("list").Parse(layout + `{{template "head"}}
<h1>{{.Total}} computers found</h1>
<form action="/computers" method="GET">
  <input type="search" id="searchbox" name="f" value="{{.Filter}}" placeholder="Filter by computer name...">
  <input type="submit" id="searchsubmit" value="Filter by name">
</form>
<a class="btn success" id="add" href="/computers/new">Add a new computer</a>
{{if .Computers}}
<table class="computers zebra-striped">
  <thead><tr><th>Computer name</th><th>Introduced</th><th>Discontinued</th><th>Company</th></tr></thead>
  <tbody>
  {{range .Computers}}<tr>
    <td><a href="/computers/{{.ID}}">{{.Name}}</a></td>
    <td>{{if .Introduced}}{{.Introduced}}{{else}}-{{end}}</td>
    <td>{{if .Discontinued}}{{.Discontinued}}{{else}}-{{end}}</td>
    <td>{{if .Company}}{{.Company}}{{else}}-{{end}}</td>
  </tr>{{end}}
  </tbody>
</table>
<div id="pagination" class="pagination"><ul>
  {{if .HasPrev}}<li class="prev"><a href="/computers?p={{.Prev}}&f={{.Filter}}">&larr; Previous</a></li>{{end}}
  <li class="current"><a>Page {{.Page}}</a></li>
  {{if .HasNext}}<li class="next"><a href="/computers?p={{.Next}}&f={{.Filter}}">Next &rarr;</a></li>{{end}}
</ul></div>
{{else}}
<div class="well"><em>Nothing to display</em></div>
{{end}}
{{template "foot"}}`))

var detailTmpl = template.Must(template.New("detail").Parse(layout + `{{template "head"}}
<h1>Edit computer</h1>
<form action="/computers/{{.ID}}" method="POST">
  <input type="text" id="name" name="name" value="{{.Name}}">
  <input type="date" id="introduced" name="introduced" value="{{.Introduced}}">
  <input type="date" id="discontinued" name="discontinued" value="{{.Discontinued}}">
  <span id="company">{{.Company}}</span>
</form>
{{template "foot"}}`))

var formTmpl = template.Must(template.New("form").Parse(layout + `{{template "head"}}
<h1>Add a computer</h1>
{{if .Error}}<div class="alert-message error">{{.Error}}</div>{{end}}
<form action="/computers" method="POST">
  <input type="text" id="name" name="name" value="{{.Computer.Name}}">
  <input type="date" id="introduced" name="introduced" value="{{.Computer.Introduced}}">
  <input type="date" id="discontinued" name="discontinued" value="{{.Computer.Discontinued}}">
  <select id="company" name="company">
    <option value="1">Apple Inc.</option>
    <option value="36">ASUS</option>
    <option value="37">Amiga Corporation</option>
  </select>
  <input type="submit" value="Create this computer" class="btn primary">
</form>
{{template "foot"}}`))
